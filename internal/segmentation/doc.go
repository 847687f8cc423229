// Package segmentation compiles a filter document into a parameterised
// subscriber query.
//
// A filter document arrives as decoded JSON. ParseFilters validates it once
// and produces a Filters value whose custom-field operators are a closed set
// (FilterOp). Compile turns Filters into a page query and a count query that
// share one WHERE clause. Every user-supplied value, custom-field names
// included, is bound as a query parameter.
package segmentation
