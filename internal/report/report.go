// Package report writes product rows for rendered mockups into xlsx
// workbooks built from a marketplace upload template.
//
// The template's header is on row 4. Rows from 5 down to the first empty
// row are prototype rows: each rendered item is written as one block of
// that many rows, copying the prototype values and overriding the product
// name, goods id, SKU, image URL and (when present) main colour.
package report

import (
	"errors"
	"fmt"
	"image"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/cenkalti/dominantcolor"
	"github.com/xuri/excelize/v2"
)

const (
	headerRow = 4
	firstRow  = 5

	// DefaultMaxDataRows is the data row limit per workbook.
	DefaultMaxDataRows = 1950
	// maxPrototypeRows bounds the prototype scan.
	maxPrototypeRows = 200
	// defaultBlockRows is used when the template has no prototype rows.
	defaultBlockRows = 5
)

// Header names looked up on the header row.
const (
	ColProductName = "t_1_Product Name"
	ColGoods       = "t_1_Contribution Goods"
	ColSKU         = "t_1_Contribution SKU"
	// Any header containing these (case-insensitive) matches.
	ColImageURLPart  = "sku images url"
	ColMainColorPart = "main color"
)

// ErrMissingColumns is returned when the header row lacks required columns.
var ErrMissingColumns = errors.New("report template missing required columns")

// ErrClosed is returned by Write once the session has no open workbook.
var ErrClosed = errors.New("report session closed")

// IDSource produces goods ids.
type IDSource func() string

// RandomDigits returns 9 random decimal digits.
func RandomDigits() string {
	var b [9]byte
	for i := range b {
		b[i] = byte('0' + rand.Intn(10))
	}
	return string(b[:])
}

// Options configures a Session.
type Options struct {
	// Template is an xlsx file to start every workbook from. Empty or
	// missing starts from a new workbook with the default header.
	Template string
	// Output is the first workbook's path. Later ones get _2, _3, ...
	Output      string
	MaxDataRows int
	IDs         IDSource
}

// Entry is one rendered item.
type Entry struct {
	Title    string
	ImageURL string
	// Image, when set, supplies the main colour.
	Image image.Image
}

type cellValue struct {
	col int
	val any
}

type columns struct {
	productName int
	goods       int
	sku         int
	images      []int
	mainColor   int
}

// Session is an open report. It is not safe for concurrent use.
type Session struct {
	opts   Options
	file   *excelize.File
	sheet  string
	cols   columns
	protos []map[int]string

	row     int
	fileIdx int
	entries int
	saved   []string
}

// Open starts a session: it loads the template, detects the columns and
// caches the prototype rows.
func Open(opts Options) (*Session, error) {
	if opts.Output == "" {
		return nil, fmt.Errorf("report output path is required")
	}
	if opts.MaxDataRows <= 0 {
		opts.MaxDataRows = DefaultMaxDataRows
	}
	if opts.IDs == nil {
		opts.IDs = RandomDigits
	}

	s := &Session{opts: opts, fileIdx: 1}
	if err := s.openWorkbook(); err != nil {
		return nil, err
	}

	rows, err := s.file.GetRows(s.sheet)
	if err != nil {
		s.file.Close()
		return nil, fmt.Errorf("failed to read report template: %w", err)
	}
	if s.cols, err = detectColumns(rows); err != nil {
		s.file.Close()
		return nil, err
	}
	s.protos = prototypeRows(rows)
	return s, nil
}

func (s *Session) openWorkbook() error {
	if s.opts.Template != "" {
		if _, err := os.Stat(s.opts.Template); err == nil {
			f, err := excelize.OpenFile(s.opts.Template)
			if err != nil {
				return fmt.Errorf("failed to open report template: %w", err)
			}
			s.file = f
			s.sheet = f.GetSheetName(f.GetActiveSheetIndex())
			s.row = firstRow
			return nil
		}
		log.Printf("Warning: report template %s not found, using default header", s.opts.Template)
	}

	f := excelize.NewFile()
	s.file = f
	s.sheet = f.GetSheetName(f.GetActiveSheetIndex())
	s.row = firstRow
	header := []any{ColProductName, ColGoods, ColSKU, "t_1_SKU Images URL", "t_1_Main Color"}
	cell, _ := excelize.CoordinatesToCellName(1, headerRow)
	if err := f.SetSheetRow(s.sheet, cell, &header); err != nil {
		return fmt.Errorf("failed to write report header: %w", err)
	}
	return nil
}

func detectColumns(rows [][]string) (columns, error) {
	var cols columns
	if len(rows) < headerRow {
		return cols, ErrMissingColumns
	}
	for i, v := range rows[headerRow-1] {
		val := strings.TrimSpace(v)
		low := strings.ToLower(val)
		col := i + 1
		switch {
		case val == ColProductName:
			cols.productName = col
		case val == ColGoods:
			cols.goods = col
		case val == ColSKU:
			cols.sku = col
		case strings.Contains(low, ColImageURLPart):
			cols.images = append(cols.images, col)
		case strings.Contains(low, ColMainColorPart) && cols.mainColor == 0:
			cols.mainColor = col
		}
	}
	if cols.productName == 0 || cols.goods == 0 || cols.sku == 0 || len(cols.images) == 0 {
		return cols, ErrMissingColumns
	}
	return cols, nil
}

func prototypeRows(rows [][]string) []map[int]string {
	var protos []map[int]string
	for r := firstRow; r < firstRow+maxPrototypeRows && r <= len(rows); r++ {
		values := map[int]string{}
		for i, v := range rows[r-1] {
			if v != "" {
				values[i+1] = v
			}
		}
		if len(values) == 0 {
			break
		}
		protos = append(protos, values)
	}
	if len(protos) == 0 {
		for i := 0; i < defaultBlockRows; i++ {
			protos = append(protos, map[int]string{})
		}
	}
	return protos
}

// BlockRows is the number of rows written per entry.
func (s *Session) BlockRows() int { return len(s.protos) }

// Entries is the number of entries written so far.
func (s *Session) Entries() int { return s.entries }

// Saved lists the workbooks written so far.
func (s *Session) Saved() []string { return s.saved }

// Write appends one block for e, rotating to a new workbook first when the
// block would pass the data row limit.
func (s *Session) Write(e Entry) error {
	if s.file == nil {
		return ErrClosed
	}
	m := len(s.protos)
	if s.row-firstRow > 0 && s.row-firstRow+m > s.opts.MaxDataRows {
		if err := s.Rotate(); err != nil {
			return err
		}
	}

	var colorHex string
	if s.cols.mainColor != 0 && e.Image != nil {
		colorHex = dominantcolor.Hex(dominantcolor.Find(e.Image))
	}

	goods := s.opts.IDs()
	for i := 0; i < m; i++ {
		r := s.row + i
		for col, val := range s.protos[i] {
			if err := s.set(col, r, val); err != nil {
				return err
			}
		}
		overrides := []cellValue{
			{s.cols.productName, e.Title},
			{s.cols.goods, goods},
			{s.cols.sku, fmt.Sprintf("%s%d", goods, i+1)},
			// only the first image column is filled
			{s.cols.images[0], e.ImageURL},
		}
		if colorHex != "" {
			overrides = append(overrides, cellValue{s.cols.mainColor, colorHex})
		}
		for _, o := range overrides {
			if err := s.set(o.col, r, o.val); err != nil {
				return err
			}
		}
	}
	s.row += m
	s.entries++
	return nil
}

func (s *Session) set(col, row int, val any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := s.file.SetCellValue(s.sheet, cell, val); err != nil {
		return fmt.Errorf("failed to write %s: %w", cell, err)
	}
	return nil
}

// Path returns the output path of the current workbook.
func (s *Session) Path() string {
	if s.fileIdx == 1 {
		return s.opts.Output
	}
	ext := filepath.Ext(s.opts.Output)
	base := strings.TrimSuffix(s.opts.Output, ext)
	return fmt.Sprintf("%s_%d%s", base, s.fileIdx, ext)
}

func (s *Session) save() error {
	path := s.Path()
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if err := s.file.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save report %s: %w", path, err)
	}
	s.saved = append(s.saved, path)
	return nil
}

// Rotate saves the current workbook and starts the next one from the
// template.
func (s *Session) Rotate() error {
	if err := s.save(); err != nil {
		return err
	}
	s.file.Close()
	s.file = nil
	s.fileIdx++
	return s.openWorkbook()
}

// Close saves the current workbook and releases it. After a failed Rotate
// there is no workbook left and Close does nothing.
func (s *Session) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.save()
	if cerr := s.file.Close(); err == nil && cerr != nil {
		err = cerr
	}
	s.file = nil
	return err
}
