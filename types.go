package reportio

import (
	"fmt"
	"strconv"
	"time"
)

// Spreadsheet format ceilings. A dataset above either limit is exported to a
// CSV sidecar instead of a workbook sheet.
const (
	maxSheetRows = 1_048_576
	maxSheetCols = 16_384
)

// defaultRowsPerChunk is the number of rows per parquet record batch when
// serializing a dataset.
const defaultRowsPerChunk = 1000

// Record is one row of a dataset. A nil element marks a SQL NULL. Values are
// normalized to int64, float64, bool, string, time.Time or []byte.
type Record []any

// Equal compares two records element-wise. Timestamps compare as instants.
func (r Record) Equal(other Record) bool {
	if len(r) != len(other) {
		return false
	}
	for i, v := range r {
		if tv, ok := v.(time.Time); ok {
			ov, ok := other[i].(time.Time)
			if !ok || !tv.Equal(ov) {
				return false
			}
			continue
		}
		if bv, ok := v.([]byte); ok {
			ov, ok := other[i].([]byte)
			if !ok || string(bv) != string(ov) {
				return false
			}
			continue
		}
		if v != other[i] {
			return false
		}
	}
	return true
}

// columnType is the storage type a dataset column maps to in parquet.
type columnType int

const (
	columnTypeText columnType = iota
	columnTypeInteger
	columnTypeReal
	columnTypeBool
	columnTypeTimestamp
	columnTypeBinary
)

// normalizeValue maps driver-specific scan results onto the canonical value
// set. Unknown types degrade to their string form.
func normalizeValue(v any) any {
	switch tv := v.(type) {
	case nil:
		return nil
	case int64, float64, bool, string, time.Time:
		return tv
	case int:
		return int64(tv)
	case int8:
		return int64(tv)
	case int16:
		return int64(tv)
	case int32:
		return int64(tv)
	case uint8:
		return int64(tv)
	case uint16:
		return int64(tv)
	case uint32:
		return int64(tv)
	case uint64:
		return int64(tv)
	case float32:
		return float64(tv)
	case []byte:
		// drivers may reuse the backing array between scans
		cp := make([]byte, len(tv))
		copy(cp, tv)
		return cp
	default:
		return fmt.Sprint(tv)
	}
}

// classifyValue reports the column type a single normalized value belongs to.
// Nil values do not participate in classification.
func classifyValue(v any) columnType {
	switch v.(type) {
	case int64:
		return columnTypeInteger
	case float64:
		return columnTypeReal
	case bool:
		return columnTypeBool
	case time.Time:
		return columnTypeTimestamp
	case []byte:
		return columnTypeBinary
	default:
		return columnTypeText
	}
}

// inferColumnTypes examines every record and assigns one type per column.
// Integer widens to real when mixed with floats; any other disagreement
// degrades the column to text. An all-null column is text.
func inferColumnTypes(columns []string, records []Record) []columnType {
	types := make([]columnType, len(columns))
	seen := make([]bool, len(columns))

	for _, record := range records {
		for i, v := range record {
			if i >= len(columns) || v == nil {
				continue
			}
			t := classifyValue(v)
			if !seen[i] {
				types[i] = t
				seen[i] = true
				continue
			}
			if types[i] == t {
				continue
			}
			if (types[i] == columnTypeInteger && t == columnTypeReal) ||
				(types[i] == columnTypeReal && t == columnTypeInteger) {
				types[i] = columnTypeReal
				continue
			}
			types[i] = columnTypeText
		}
	}
	return types
}

// formatValue renders a value for CSV cells and log lines. NULL renders as an
// empty string, timestamps as RFC 3339, floats in their shortest form.
func formatValue(v any) string {
	switch tv := v.(type) {
	case nil:
		return ""
	case string:
		return tv
	case int64:
		return strconv.FormatInt(tv, 10)
	case float64:
		return strconv.FormatFloat(tv, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(tv)
	case time.Time:
		return tv.Format(time.RFC3339)
	case []byte:
		return string(tv)
	default:
		return fmt.Sprint(tv)
	}
}
