package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"options-paper-ledger/internal/models"
)

// CSVStore keeps the ledger in a single CSV file whose first record is the header.
// Appends go to the end of the file; updates rewrite it through a temp file and rename.
type CSVStore struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

var _ RecordStore = (*CSVStore)(nil)

// NewCSVStore returns a store over path. The file is created by EnsureHeader.
func NewCSVStore(path string, logger *zap.Logger) *CSVStore {
	return &CSVStore{path: path, logger: logger.Named("csv-store")}
}

func (s *CSVStore) EnsureHeader(_ context.Context, header []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	have, _, err := s.load()
	if err != nil {
		return err
	}
	if have != nil {
		return checkHeader(have, header)
	}

	s.logger.Info("Writing header to empty ledger file", zap.String("path", s.path))
	return s.write(header, nil)
}

func (s *CSVStore) ReadAll(_ context.Context) ([]models.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	header, records, err := s.load()
	if err != nil {
		return nil, err
	}

	rows := make([]models.Row, len(records))
	for i, rec := range records {
		rows[i] = models.RowFromValues(header, rec)
	}
	return rows, nil
}

func (s *CSVStore) Append(_ context.Context, row models.Row) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	header, _, err := s.load()
	if err != nil {
		return err
	}
	if header == nil {
		return unavailable("append row", errors.New("ledger file has no header"))
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return unavailable("open ledger file", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = unavailable("close ledger file", cerr)
		}
	}()

	// A hand-edited file may lack its final newline; the new record must not join that line.
	if err := terminateLastLine(f); err != nil {
		return unavailable("append row", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(row.Values(header)); err != nil {
		return unavailable("append row", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return unavailable("append row", err)
	}
	if err := f.Sync(); err != nil {
		return unavailable("sync ledger file", err)
	}
	return nil
}

func (s *CSVStore) UpdateFields(_ context.Context, position int, fields models.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	header, records, err := s.load()
	if err != nil {
		return err
	}
	if position < 0 || position >= len(records) {
		return fmt.Errorf("%w: %d", ErrRowOutOfRange, position)
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		index[col] = i
	}

	rec := records[position]
	for col, v := range fields {
		i, ok := index[col]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownColumn, col)
		}
		for len(rec) <= i {
			rec = append(rec, "")
		}
		rec[i] = v
	}
	records[position] = rec

	return s.write(header, records)
}

func (s *CSVStore) Close() error { return nil }

// load returns the header and the data records. A missing or empty file yields a nil header.
func (s *CSVStore) load() ([]string, [][]string, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, unavailable("open ledger file", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, unavailable("read header", err)
	}

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, unavailable("read rows", err)
	}
	return header, records, nil
}

func (s *CSVStore) write(header []string, records [][]string) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return unavailable("create temp file", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return unavailable("write header", err)
	}
	if err := w.WriteAll(records); err != nil {
		tmp.Close()
		return unavailable("write rows", err)
	}
	if err := tmp.Close(); err != nil {
		return unavailable("close temp file", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return unavailable("replace ledger file", err)
	}
	return nil
}

// terminateLastLine writes a newline when the file is non-empty and does not end with one.
func terminateLastLine(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return err
	}
	if last[0] == '\n' {
		return nil
	}
	_, err = f.Write([]byte("\n"))
	return err
}
