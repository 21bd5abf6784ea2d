package reportio

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/apache/arrow/go/v18/parquet"
	"github.com/apache/arrow/go/v18/parquet/compress"
	pqfile "github.com/apache/arrow/go/v18/parquet/file"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
)

// Temporary datasets and backup records are parquet files with gzip
// compressed pages. They carry the .gz suffix but read back with a plain
// parquet reader; no outer stream compression is applied.

// arrowType maps a column type to its arrow field type.
func arrowType(t columnType) arrow.DataType {
	switch t {
	case columnTypeInteger:
		return arrow.PrimitiveTypes.Int64
	case columnTypeReal:
		return arrow.PrimitiveTypes.Float64
	case columnTypeBool:
		return arrow.FixedWidthTypes.Boolean
	case columnTypeTimestamp:
		return arrow.FixedWidthTypes.Timestamp_us
	case columnTypeBinary:
		return arrow.BinaryTypes.Binary
	default:
		return arrow.BinaryTypes.String
	}
}

// writeParquet serializes a dataset in record batches of defaultRowsPerChunk.
func writeParquet(w io.Writer, ds *Dataset) error {
	types := inferColumnTypes(ds.Columns, ds.Records)
	fields := make([]arrow.Field, len(ds.Columns))
	for i, name := range ds.Columns {
		fields[i] = arrow.Field{Name: name, Type: arrowType(types[i]), Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Gzip))
	writer, err := pqarrow.NewFileWriter(schema, w, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}

	builder := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer builder.Release()

	flush := func() error {
		rec := builder.NewRecord()
		defer rec.Release()
		if err := writer.Write(rec); err != nil {
			return fmt.Errorf("failed to write record batch: %w", err)
		}
		return nil
	}

	pending := 0
	for _, record := range ds.Records {
		for i := range ds.Columns {
			var v any
			if i < len(record) {
				v = record[i]
			}
			appendArrowValue(builder.Field(i), v)
		}
		pending++
		if pending == defaultRowsPerChunk {
			if err := flush(); err != nil {
				return err
			}
			pending = 0
		}
	}
	if pending > 0 {
		if err := flush(); err != nil {
			return err
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

// appendArrowValue appends one value to the builder for its column. A nil
// value appends null. Text columns accept any value in its string form;
// typed columns only ever see matching values because inference degrades
// mixed columns to text.
func appendArrowValue(b array.Builder, v any) {
	if v == nil {
		b.AppendNull()
		return
	}
	switch bt := b.(type) {
	case *array.Int64Builder:
		if iv, ok := v.(int64); ok {
			bt.Append(iv)
			return
		}
	case *array.Float64Builder:
		switch fv := v.(type) {
		case float64:
			bt.Append(fv)
			return
		case int64:
			bt.Append(float64(fv))
			return
		}
	case *array.BooleanBuilder:
		if bv, ok := v.(bool); ok {
			bt.Append(bv)
			return
		}
	case *array.TimestampBuilder:
		if tv, ok := v.(time.Time); ok {
			bt.Append(arrow.Timestamp(tv.UnixMicro()))
			return
		}
	case *array.BinaryBuilder:
		if bv, ok := v.([]byte); ok {
			bt.Append(bv)
			return
		}
	case *array.StringBuilder:
		bt.Append(formatValue(v))
		return
	}
	b.AppendNull()
}

// readParquet loads a dataset written by writeParquet. A zero-row file
// yields an empty dataset with its column names intact.
func readParquet(path string) (*Dataset, error) {
	file, err := os.Open(path) //nolint:gosec // caller controls cache paths
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	pqReader, err := pqfile.NewParquetReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet reader: %w", err)
	}
	defer func() {
		_ = pqReader.Close()
	}()

	arrowReader, err := pqarrow.NewFileReader(pqReader, pqarrow.ArrowReadProperties{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create arrow reader: %w", err)
	}

	table, err := arrowReader.ReadTable(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to read table: %w", err)
	}
	defer table.Release()

	schema := table.Schema()
	columns := make([]string, schema.NumFields())
	for i, field := range schema.Fields() {
		columns[i] = field.Name
	}

	ds := &Dataset{Columns: columns}
	if table.NumRows() == 0 {
		return ds, nil
	}

	tableReader := array.NewTableReader(table, defaultRowsPerChunk)
	defer tableReader.Release()

	for tableReader.Next() {
		batch := tableReader.Record()
		numRows := batch.NumRows()
		for i := int64(0); i < numRows; i++ {
			record := make(Record, batch.NumCols())
			for j, col := range batch.Columns() {
				record[j] = extractArrowValue(col, int(i))
			}
			ds.Records = append(ds.Records, record)
		}
	}
	if err := tableReader.Err(); err != nil {
		return nil, fmt.Errorf("failed to read table records: %w", err)
	}

	return ds, nil
}

// extractArrowValue converts one arrow array element back to its canonical
// value. Nulls come back as nil.
func extractArrowValue(col arrow.Array, i int) any {
	if col.IsNull(i) {
		return nil
	}
	switch arr := col.(type) {
	case *array.Int8:
		return int64(arr.Value(i))
	case *array.Int16:
		return int64(arr.Value(i))
	case *array.Int32:
		return int64(arr.Value(i))
	case *array.Int64:
		return arr.Value(i)
	case *array.Uint8:
		return int64(arr.Value(i))
	case *array.Uint16:
		return int64(arr.Value(i))
	case *array.Uint32:
		return int64(arr.Value(i))
	case *array.Uint64:
		return int64(arr.Value(i)) //nolint:gosec // self-written files never exceed int64
	case *array.Float32:
		return float64(arr.Value(i))
	case *array.Float64:
		return arr.Value(i)
	case *array.Boolean:
		return arr.Value(i)
	case *array.String:
		return arr.Value(i)
	case *array.Binary:
		value := arr.Value(i)
		cp := make([]byte, len(value))
		copy(cp, value)
		return cp
	case *array.Timestamp:
		tsType, ok := arr.DataType().(*arrow.TimestampType)
		if !ok {
			return fmt.Sprint(arr.Value(i))
		}
		return arr.Value(i).ToTime(tsType.Unit)
	default:
		return fmt.Sprint(col.GetOneForMarshal(i))
	}
}
