package models

import "time"

// Snapshot is an immutable view of the loaded dataset. Version increases
// every time the record set changes.
type Snapshot struct {
	Records  []Record
	Version  uint64
	LoadedAt time.Time
}

// Len returns the number of records in the snapshot.
func (s Snapshot) Len() int { return len(s.Records) }

// ImportBatch describes one imported file.
type ImportBatch struct {
	ID            string    `json:"id"`
	SourcePath    string    `json:"source_path"`
	Checksum      string    `json:"checksum"`
	RowCount      int       `json:"row_count"`
	RejectedCount int       `json:"rejected_count"`
	WarningCount  int       `json:"warning_count"`
	ImportedAt    time.Time `json:"imported_at"`
}
