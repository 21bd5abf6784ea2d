package reportio

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"
)

// OutputFormat represents the export file format.
type OutputFormat int

const (
	// OutputFormatXLSX is an Excel workbook with one worksheet per dataset.
	OutputFormatXLSX OutputFormat = iota
	// OutputFormatCSV is one comma separated text file per dataset.
	OutputFormatCSV
)

// String returns the string representation of OutputFormat.
func (f OutputFormat) String() string {
	switch f {
	case OutputFormatXLSX:
		return "xlsx"
	case OutputFormatCSV:
		return "csv"
	default:
		return "xlsx"
	}
}

// Extension returns the file extension for the format.
func (f OutputFormat) Extension() string {
	switch f {
	case OutputFormatXLSX:
		return extXLSX
	case OutputFormatCSV:
		return extCSV
	default:
		return extXLSX
	}
}

// fitsWorksheet reports whether the dataset fits one worksheet. Anything
// over the worksheet row or column limit is exported as a CSV sidecar.
func fitsWorksheet(ds *Dataset) bool {
	return ds.Rows() <= maxSheetRows && ds.Cols() <= maxSheetCols
}

// exporter accumulates worksheets in one workbook and spills oversized
// datasets to sidecar CSV files next to it. Workers finish out of order, so
// every entry point serializes on the mutex.
type exporter struct {
	basePath string
	logger   Logger
	csvComp  CompressionType

	mu        sync.Mutex
	book      *excelize.File
	sheets    []string
	locations []string
	sheetSeq  int
}

// newExporter prepares an exporter writing to path. An extension on path is
// discarded; the exporter appends its own per artifact.
func newExporter(path string, logger Logger, csvComp CompressionType) *exporter {
	if ext := filepath.Ext(path); ext != "" {
		logf(logger, LevelWarn, "file extension will be overwritten")
		path = strings.TrimSuffix(path, ext)
	}
	return &exporter{
		basePath: path,
		logger:   logger,
		csvComp:  csvComp,
		book:     excelize.NewFile(),
	}
}

func (e *exporter) workbookPath() string {
	return e.basePath + extXLSX
}

func (e *exporter) csvPath(name string) string {
	return e.basePath + "__" + name + extCSV + e.csvComp.Extension()
}

// export writes one dataset as a worksheet, or as a CSV sidecar when it
// exceeds the worksheet limits. It returns the path of the artifact the
// dataset landed in; worksheets share the workbook path.
func (e *exporter) export(name string, ds *Dataset) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.sheetSeq++
	if name == "" {
		name = fmt.Sprintf("Sheet%d", e.sheetSeq)
	}

	if !fitsWorksheet(ds) {
		return e.exportCSV(name, ds)
	}
	return e.exportSheet(name, ds)
}

// exportSheet streams one dataset into its own worksheet. Callers hold the
// mutex.
func (e *exporter) exportSheet(name string, ds *Dataset) (string, error) {
	logf(e.logger, LevelInfo, "exporting data to Excel")

	path := e.workbookPath()
	if _, err := e.book.NewSheet(name); err != nil {
		return "", NewErrorContext("worksheet export", path).WithDetails(fmt.Sprintf("sheet %q", name)).Error(err)
	}
	sw, err := e.book.NewStreamWriter(name)
	if err != nil {
		return "", NewErrorContext("worksheet export", path).WithDetails(fmt.Sprintf("sheet %q", name)).Error(err)
	}

	header := make([]any, len(ds.Columns))
	for i, col := range ds.Columns {
		header[i] = col
	}
	cell, _ := excelize.CoordinatesToCellName(1, 1)
	if err := sw.SetRow(cell, header); err != nil {
		return "", NewErrorContext("worksheet export", path).Error(err)
	}

	row := make([]any, len(ds.Columns))
	for i, rec := range ds.Records {
		for j := range row {
			row[j] = nil
		}
		for j, v := range rec {
			if j < len(row) {
				row[j] = exportCellValue(v)
			}
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := sw.SetRow(cell, row); err != nil {
			return "", NewErrorContext("worksheet export", path).Error(err)
		}
	}
	if err := sw.Flush(); err != nil {
		return "", NewErrorContext("worksheet export", path).Error(err)
	}

	e.sheets = append(e.sheets, name)
	e.addLocation(path)
	return path, nil
}

// exportCSV writes one dataset to a sidecar file, compressed when the
// exporter was configured with a compression type. Callers hold the mutex.
func (e *exporter) exportCSV(name string, ds *Dataset) (string, error) {
	logf(e.logger, LevelInfo, "exporting data to CSV")

	path := e.csvPath(name)
	w, cleanup, err := newCompressedFileWriter(path, e.csvComp)
	if err != nil {
		return "", NewErrorContext("CSV export", path).Error(err)
	}

	cw := csv.NewWriter(w)
	writeErr := cw.Write(ds.Columns)
	if writeErr == nil {
		row := make([]string, len(ds.Columns))
		for _, rec := range ds.Records {
			for j := range row {
				row[j] = ""
			}
			for j, v := range rec {
				if j < len(row) {
					row[j] = formatValue(v)
				}
			}
			if writeErr = cw.Write(row); writeErr != nil {
				break
			}
		}
	}
	if writeErr == nil {
		cw.Flush()
		writeErr = cw.Error()
	}
	if writeErr != nil {
		_ = cleanup()
		_ = os.Remove(path)
		return "", NewErrorContext("CSV export", path).Error(writeErr)
	}
	if err := cleanup(); err != nil {
		return "", NewErrorContext("CSV export", path).Error(err)
	}

	e.addLocation(path)
	return path, nil
}

// exportCellValue adapts a normalized record value for excelize. Byte blobs
// become text; excelize handles the rest natively, including time.Time.
func exportCellValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// addLocation records an artifact path once. Callers hold the mutex.
func (e *exporter) addLocation(path string) {
	for _, loc := range e.locations {
		if loc == path {
			return
		}
	}
	e.locations = append(e.locations, path)
}

// save finalizes the workbook. Worksheets are rearranged to follow order,
// the untouched default sheet is dropped, and the workbook is written to
// disk. It returns every artifact produced, CSV sidecars included.
func (e *exporter) save(order []string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.sheets) > 0 {
		if err := e.reorderSheets(order); err != nil {
			return nil, NewErrorContext("workbook save", e.workbookPath()).Error(err)
		}
		if err := e.dropDefaultSheet(); err != nil {
			return nil, NewErrorContext("workbook save", e.workbookPath()).Error(err)
		}
		if err := e.book.SaveAs(e.workbookPath()); err != nil {
			return nil, NewErrorContext("workbook save", e.workbookPath()).Error(err)
		}
		logf(e.logger, LevelInfo, "file saved")
	}

	out := make([]string, len(e.locations))
	copy(out, e.locations)
	return out, nil
}

// reorderSheets moves worksheets into the relative order given. Names not
// present as worksheets (CSV spills, unnamed datasets) are skipped. Callers
// hold the mutex.
func (e *exporter) reorderSheets(order []string) error {
	present := make(map[string]bool, len(e.sheets))
	for _, s := range e.sheets {
		present[s] = true
	}
	want := make([]string, 0, len(e.sheets))
	for _, name := range order {
		if present[name] {
			want = append(want, name)
		}
	}
	// MoveSheet places the first sheet before the second, so walking the
	// wanted order right to left settles every pair.
	for i := len(want) - 2; i >= 0; i-- {
		if err := e.book.MoveSheet(want[i], want[i+1]); err != nil {
			return err
		}
	}
	return nil
}

// dropDefaultSheet removes the sheet excelize seeds new workbooks with,
// unless a dataset claimed that name. Callers hold the mutex.
func (e *exporter) dropDefaultSheet() error {
	const def = "Sheet1"
	for _, s := range e.sheets {
		if s == def {
			return nil
		}
	}
	return e.book.DeleteSheet(def)
}

// close releases the workbook's resources without saving.
func (e *exporter) close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.Close()
}

// removeStaleOutput deletes export artifacts left by a previous run so a
// failed run never leaves an outdated workbook that looks current.
func removeStaleOutput(basePath string, logger Logger) error {
	if ext := filepath.Ext(basePath); ext != "" {
		basePath = strings.TrimSuffix(basePath, ext)
	}
	matches, err := filepath.Glob(basePath + "*")
	if err != nil {
		return err
	}
	for _, path := range matches {
		if !isReportOutput(path) {
			continue
		}
		logf(logger, LevelDebug, "removing '%s'", path)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// isReportOutput reports whether path looks like an artifact this package
// produces: a workbook, a CSV sidecar, or a compressed CSV sidecar.
func isReportOutput(path string) bool {
	name := filepath.Base(path)
	if strings.HasSuffix(name, extXLSX) {
		return true
	}
	for _, ext := range []string{extCSV, extCSV + extGZ, extCSV + extBZ2, extCSV + extXZ, extCSV + extZSTD} {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
