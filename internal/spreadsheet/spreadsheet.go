// Package spreadsheet converts inventories to and from tabular files.
package spreadsheet

import (
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kalambet/partsbin/internal/apperror"
	"github.com/kalambet/partsbin/internal/catalog"
)

const (
	ColPartNumber   = "Part Number"
	ColType         = "Type"
	ColValue        = "Value"
	ColQuantity     = "Quantity"
	ColPurchaseLink = "Purchase Link"
	ColDatasheet    = "Datasheet Link"
)

// Columns is the header written on export, in order.
var Columns = []string{ColPartNumber, ColType, ColValue, ColQuantity, ColPurchaseLink, ColDatasheet}

// RequiredColumns must all be present in an imported header.
var RequiredColumns = []string{ColPartNumber, ColType, ColValue, ColQuantity}

type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// ParseFormat accepts "xlsx" or "csv", with or without a leading dot.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))) {
	case FormatXLSX:
		return FormatXLSX, nil
	case FormatCSV:
		return FormatCSV, nil
	}
	return "", apperror.NewInvalidInput("unsupported spreadsheet format %q (use xlsx or csv)", s)
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// ContentType returns the MIME type of a format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// Export writes components as a spreadsheet with the fixed Columns.
func Export(w io.Writer, format Format, components []catalog.Component, reg *catalog.Registry) error {
	rows := make([][]any, 0, len(components)+1)
	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	rows = append(rows, header)
	for _, c := range components {
		rows = append(rows, []any{
			c.PartNumber,
			reg.DisplayName(c.Type),
			reg.ValueOf(c),
			c.Quantity,
			c.PurchaseURL,
			c.DatasheetURL,
		})
	}

	switch format {
	case FormatXLSX:
		return writeXLSX(w, rows)
	case FormatCSV:
		return writeCSV(w, rows)
	}
	return apperror.NewInvalidInput("unsupported spreadsheet format %q", format)
}

// Import reads components from a spreadsheet. The header is validated before
// any row is converted; errors name the spreadsheet row (header is row 1).
// The returned components carry category IDs and have no IDs of their own.
func Import(r io.Reader, format Format, reg *catalog.Registry) ([]catalog.Component, error) {
	var records [][]string
	var err error
	switch format {
	case FormatXLSX:
		records, err = readXLSX(r)
	case FormatCSV:
		records, err = readCSV(r)
	default:
		return nil, apperror.NewInvalidInput("unsupported spreadsheet format %q", format)
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, apperror.NewInvalidInput("spreadsheet is empty")
	}

	index, err := headerIndex(records[0])
	if err != nil {
		return nil, err
	}

	var out []catalog.Component
	for i, rec := range records[1:] {
		rowNum := i + 2
		if blank(rec) {
			continue
		}
		c, err := convertRow(rec, index, reg)
		if err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				appErr.Message = "row " + strconv.Itoa(rowNum) + ": " + appErr.Message
				appErr.WithDetail("row", rowNum)
				return nil, appErr
			}
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func headerIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}
	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, apperror.NewInvalidInput("missing required column(s): %s", strings.Join(missing, ", ")).
			WithDetail("missing", missing)
	}
	return index, nil
}

func convertRow(rec []string, index map[string]int, reg *catalog.Registry) (catalog.Component, error) {
	cell := func(col string) string {
		i, ok := index[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	pn := cell(ColPartNumber)
	if pn == "" {
		return catalog.Component{}, apperror.NewInvalidInput("part number is empty")
	}
	cat, err := reg.Resolve(cell(ColType))
	if err != nil {
		return catalog.Component{}, err
	}
	qty, err := parseQuantity(cell(ColQuantity))
	if err != nil {
		return catalog.Component{}, err
	}

	return catalog.Component{
		PartNumber:   pn,
		Type:         cat.ID,
		Attributes:   catalog.ParseValue(cell(ColValue), cat.Attributes),
		Quantity:     qty,
		PurchaseURL:  cell(ColPurchaseLink),
		DatasheetURL: cell(ColDatasheet),
	}, nil
}

// parseQuantity accepts whole numbers, including spreadsheet renderings like "12.0".
func parseQuantity(s string) (int, error) {
	if s == "" {
		return 0, apperror.NewInvalidInput("quantity is empty").WithDetail("field", "quantity")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
			return 0, apperror.NewInvalidInput("quantity %q is not a whole number", s).WithDetail("field", "quantity")
		}
		n = int(f)
	}
	if n < 0 {
		return 0, apperror.NewInvalidQuantity(n, "must not be negative")
	}
	return n, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
