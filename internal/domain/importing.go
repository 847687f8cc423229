package domain

// ImportSummary reports the outcome of a CSV import.
type ImportSummary struct {
	ImportID         string   `json:"importId,omitempty"`
	TotalCSVRows     int      `json:"totalCsvRows"`
	AlreadyExisted   int      `json:"alreadyExisted"`
	NewlyAdded       int      `json:"newlyAdded"`
	Skipped          int      `json:"skipped"`
	InvalidRows      int      `json:"invalidRows"`
	ValidationErrors []string `json:"validationErrors,omitempty"`
	Message          string   `json:"message"`
}

// ImportStatus enumerates the states of an import tracked in the progress store.
type ImportStatus string

const (
	ImportProcessing ImportStatus = "processing"
	ImportCompleted  ImportStatus = "completed"
	ImportFailed     ImportStatus = "failed"
)

// ImportProgress is the live view of an import.
type ImportProgress struct {
	ImportID   string       `json:"importId"`
	ListID     string       `json:"listId"`
	Status     ImportStatus `json:"status"`
	RowsRead   int64        `json:"rowsRead"`
	NewlyAdded int64        `json:"newlyAdded"`
	Error      string       `json:"error,omitempty"`
}
