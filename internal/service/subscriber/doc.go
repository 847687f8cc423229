// Package subscriber manages individual subscribers and their PGP key
// enrollment. Bulk creation goes through the list CSV importer instead.
package subscriber
