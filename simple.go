package reportio

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

const (
	// metadataFileName is the workbook the query list is persisted to. The
	// leading marker keeps it outside the dataset file namespace.
	metadataFileName = "__Metadata.xlsx"
	metadataSheet    = "Queries"
)

// SimpleReport is a Report whose query list survives failed runs. Its
// backup hook writes the list to a metadata workbook next to the dataset
// backups, and its restore hook reads the list back on a same-day resume,
// so an unattended rerun picks up where it stopped without the embedding
// program re-registering anything.
//
// SimpleReport owns the report's backup hooks; combine it with WithHooks
// and the metadata hooks win.
type SimpleReport struct {
	*Report
}

// NewSimpleReport builds a Report with the metadata hooks bound.
func NewSimpleReport(name string, opts ...Option) (*SimpleReport, error) {
	s := &SimpleReport{}
	opts = append(append([]Option{}, opts...),
		WithHooks(Hooks{
			Backup:     s.backupMetadata,
			Restore:    s.restoreMetadata,
			DeleteFile: s.deleteMetadata,
		}),
		WithInitFunc(func(r *Report) error {
			s.Report = r
			return nil
		}),
	)

	r, err := New(name, opts...)
	if err != nil {
		return nil, err
	}
	s.Report = r
	return s, nil
}

func (s *SimpleReport) metadataPath() string {
	return filepath.Join(s.cfg.BackupDir, metadataFileName)
}

// backupMetadata writes the query list to the metadata workbook, one row
// per query.
func (s *SimpleReport) backupMetadata() error {
	path := s.metadataPath()
	book := excelize.NewFile()
	defer book.Close()

	if err := book.SetSheetName("Sheet1", metadataSheet); err != nil {
		return NewErrorContext("metadata backup", path).Error(err)
	}
	header := []any{"name", "sql", "kind", "source", "location"}
	if err := book.SetSheetRow(metadataSheet, "A1", &header); err != nil {
		return NewErrorContext("metadata backup", path).Error(err)
	}
	for i, q := range s.Queries() {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return NewErrorContext("metadata backup", path).Error(err)
		}
		row := []any{q.Name, q.SQL, q.SourceKind, q.Source, q.SourceLocation}
		if err := book.SetSheetRow(metadataSheet, cell, &row); err != nil {
			return NewErrorContext("metadata backup", path).Error(err)
		}
	}
	if err := book.SaveAs(path); err != nil {
		return NewErrorContext("metadata backup", path).Error(err)
	}

	logf(s.logger, LevelDebug, "query list saved to '%s'", path)
	return nil
}

// restoreMetadata reads the query list back from the metadata workbook.
// A backup without a metadata workbook cannot be trusted, so it is purged
// and the report starts over.
func (s *SimpleReport) restoreMetadata() error {
	path := s.metadataPath()
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			logf(s.logger, LevelError, "metadata not found, restarting report")
			return s.backup.deleteBackup()
		}
		return NewErrorContext("metadata restore", path).Error(err)
	}

	book, err := excelize.OpenFile(path)
	if err != nil {
		return NewErrorContext("metadata restore", path).Error(err)
	}
	defer book.Close()

	rows, err := book.GetRows(metadataSheet)
	if err != nil {
		return NewErrorContext("metadata restore", path).Error(err)
	}
	for i, row := range rows {
		if i == 0 {
			continue
		}
		q := Query{
			Name:           metadataCell(row, 0),
			SQL:            metadataCell(row, 1),
			SourceKind:     metadataCell(row, 2),
			Source:         metadataCell(row, 3),
			SourceLocation: metadataCell(row, 4),
		}
		if err := s.AddQuery(q); err != nil {
			return fmt.Errorf("restored query %d: %w", i, err)
		}
	}
	return nil
}

// metadataCell returns column i of a row; excelize trims trailing blank
// cells, so short rows read as empty strings.
func metadataCell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// deleteMetadata removes the metadata workbook when the purge sweep reaches
// it. Every other file is left to the built-in sweep.
func (s *SimpleReport) deleteMetadata(path string) error {
	if filepath.Base(path) != metadataFileName {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
