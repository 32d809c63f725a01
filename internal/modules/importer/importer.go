// Package importer maps spreadsheet and CSV portfolio exports onto holdings.
package importer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aristath/beam/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned for files that are neither CSV nor XLSX
var ErrUnsupportedFormat = errors.New("unsupported file type, expected .csv or .xlsx")

// ErrEmptyFile is returned when the input has no header row
var ErrEmptyFile = errors.New("file has no header row")

// Result is the outcome of one import
type Result struct {
	BatchID  string
	Holdings []domain.Holding
	Errors   []RowError
	Skipped  int
}

// Importer turns tabular files into holdings
type Importer struct {
	log zerolog.Logger
}

// New creates an importer
func New(log zerolog.Logger) *Importer {
	return &Importer{log: log.With().Str("component", "importer").Logger()}
}

// Import reads r according to the extension of filename.
// Files without an extension are read as CSV.
func (im *Importer) Import(r io.Reader, filename string) (*Result, error) {
	var rows [][]string
	var err error

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt", "":
		rows, err = readCSV(r)
	case ".xlsx", ".xlsm":
		rows, err = readXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}
	if err != nil {
		return nil, err
	}

	res, err := im.mapRows(rows)
	if err != nil {
		return nil, err
	}

	im.log.Info().
		Str("batch_id", res.BatchID).
		Str("file", filename).
		Int("holdings", len(res.Holdings)).
		Int("rejected", len(res.Errors)).
		Int("skipped", res.Skipped).
		Msg("Portfolio imported")

	return res, nil
}

// readCSV sniffs the delimiter from the header line
func readCSV(r io.Reader) ([][]string, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	firstLine := head
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		firstLine = head[:i]
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	if bytes.Count(firstLine, []byte{';'}) > bytes.Count(firstLine, []byte{','}) {
		cr.Comma = ';'
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	return rows, nil
}

// readXLSX reads the first sheet of a workbook
func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

func (im *Importer) mapRows(rows [][]string) (*Result, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}
	s, err := mapHeader(rows[0])
	if err != nil {
		return nil, err
	}

	res := &Result{BatchID: uuid.NewString(), Holdings: []domain.Holding{}}
	for i, row := range rows[1:] {
		line := i + 2
		if blank(row) {
			continue
		}

		h, rowErr := s.holding(row, line)
		if rowErr != nil {
			im.log.Warn().
				Int("row", rowErr.Row).
				Str("column", rowErr.Column).
				Str("value", rowErr.Value).
				Msg(rowErr.Reason)
			res.Errors = append(res.Errors, *rowErr)
			continue
		}
		if !h.Contributes() {
			res.Skipped++
			continue
		}
		res.Holdings = append(res.Holdings, h)
	}
	return res, nil
}

// holding maps one row. Required numeric cells that fail to parse quarantine the row.
func (s schema) holding(row []string, line int) (domain.Holding, *RowError) {
	h := domain.Holding{
		Ticker:   strings.ToUpper(s.cell(row, ColTicker)),
		Name:     s.cell(row, ColName),
		Currency: domain.NormalizeCurrency(s.cell(row, ColCurrency)),
		Category: s.cell(row, ColCategory),
	}
	if h.Category == "" {
		h.Category = domain.DefaultCategory
	}

	numeric := []struct {
		col      string
		dst      *float64
		fallback float64
	}{
		{ColQuantity, &h.Quantity, 0},
		{ColAcquisition, &h.AcquisitionPrice, 0},
		{ColTargetLT, &h.TargetLT, 0},
		{ColFactor, &h.AdjustmentFactor, 1},
	}
	for _, n := range numeric {
		raw := s.cell(row, n.col)
		if raw == "" {
			*n.dst = n.fallback
			continue
		}
		v, err := ParseNumber(raw)
		if err != nil {
			return domain.Holding{}, &RowError{Row: line, Column: n.col, Value: raw, Reason: "not a number"}
		}
		*n.dst = v
	}

	if h.Contributes() && h.Currency == "" {
		return domain.Holding{}, &RowError{Row: line, Column: ColCurrency, Reason: "missing currency"}
	}
	return h, nil
}

// ParseNumber accepts French and English notations: spaces and non-breaking
// spaces are dropped and a decimal comma is read as a point.
func ParseNumber(s string) (float64, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f', '\t':
			return -1
		case ',':
			return '.'
		}
		return r
	}, s)
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite number %q", s)
	}
	return v, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
