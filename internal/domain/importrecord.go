package domain

import "time"

// ImportSource identifies the CSV format an import batch was parsed with.
type ImportSource string

const (
	SourceSelfWealth ImportSource = "SELFWEALTH"
	SourceGeneric    ImportSource = "GENERIC"
)

// ImportRecord is the audit row for one confirmed CSV import batch.
type ImportRecord struct {
	ID            int64
	Filename      string
	ImportedAt    time.Time
	SourceType    ImportSource
	RowCount      int               // Rows actually created (valid, non-duplicate)
	ColumnMapping map[string]string // CSV column -> canonical field
}
