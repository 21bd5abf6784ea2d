package reportio

import (
	"database/sql"
	"fmt"
)

// Dataset is a materialized query result: ordered column names plus records.
// SQL NULL survives as a nil element so cache round-trips keep null markers.
type Dataset struct {
	Columns []string
	Records []Record
}

// Rows returns the number of records.
func (d *Dataset) Rows() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// Cols returns the number of columns.
func (d *Dataset) Cols() int {
	if d == nil {
		return 0
	}
	return len(d.Columns)
}

// Empty reports whether the dataset holds no records.
func (d *Dataset) Empty() bool {
	return d.Rows() == 0
}

// Equal compares column names and every record.
func (d *Dataset) Equal(other *Dataset) bool {
	if d.Cols() != other.Cols() || d.Rows() != other.Rows() {
		return false
	}
	for i, c := range d.Columns {
		if other.Columns[i] != c {
			return false
		}
	}
	for i, r := range d.Records {
		if !r.Equal(other.Records[i]) {
			return false
		}
	}
	return true
}

// scanDataset materializes a result set. Heap usage is checked every
// memoryCheckInterval rows when a limit is configured.
func scanDataset(rows *sql.Rows, limit *memoryLimit) (*Dataset, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	var records []Record
	values := make([]any, len(columns))
	pointers := make([]any, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}

	for rows.Next() {
		if limit != nil && len(records)%memoryCheckInterval == 0 {
			switch limit.check() {
			case memoryStatusExceeded:
				return nil, limit.err("result scan")
			case memoryStatusWarning:
				maybeForceGC()
			}
		}

		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		record := make(Record, len(columns))
		for i, v := range values {
			record[i] = normalizeValue(v)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read result set: %w", err)
	}

	return &Dataset{Columns: columns, Records: records}, nil
}
