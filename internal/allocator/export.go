package allocator

import (
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/geobrowser/internal/fetcher"
)

// Header is the export column order.
var Header = []string{"Project Name", "Allocated Amount", "Category", "Department", "Status"}

// SheetName is the worksheet written by WriteXLSX.
const SheetName = "Allocations"

// FormatAmount renders an amount as "$N".
func FormatAmount(v int64) string {
	return "$" + strconv.FormatInt(v, 10)
}

// WriteCSV writes the selected rows as comma-separated lines joined by "\n",
// header first. Fields are written verbatim: values containing commas or
// quotes are not escaped.
func WriteCSV(w io.Writer, p *Plan) error {
	lines := make([]string, 0, len(p.Rows)+1)
	lines = append(lines, strings.Join(Header, ","))
	for _, r := range p.SelectedRows() {
		lines = append(lines, strings.Join([]string{
			r.Name, FormatAmount(r.Amount), r.Category, r.Department, r.Status,
		}, ","))
	}
	if _, err := io.WriteString(w, strings.Join(lines, "\n")); err != nil {
		return eris.Wrap(err, "allocator: write csv")
	}
	return nil
}

// WriteXLSX writes the selected rows as a workbook with one sheet.
func WriteXLSX(w io.Writer, p *Plan) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "allocator: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range Header {
		header.AddCell().SetString(h)
	}
	for _, r := range p.SelectedRows() {
		row := sheet.AddRow()
		row.AddCell().SetString(r.Name)
		row.AddCell().SetInt64(r.Amount)
		row.AddCell().SetString(r.Category)
		row.AddCell().SetString(r.Department)
		row.AddCell().SetString(r.Status)
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "allocator: write xlsx")
	}
	return nil
}

// ReadXLSX imports rows from a workbook written by WriteXLSX (or any sheet
// with the same header). Every imported row is selected.
func ReadXLSX(path string, budget int64) (*Plan, error) {
	rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{})
	if err != nil {
		return nil, eris.Wrap(err, "allocator: read xlsx")
	}
	return planFromRows(rows, budget)
}

// ParseXLSX is ReadXLSX over an in-memory workbook.
func ParseXLSX(data []byte, budget int64) (*Plan, error) {
	rows, err := fetcher.ParseXLSX(data, fetcher.XLSXOptions{})
	if err != nil {
		return nil, eris.Wrap(err, "allocator: parse xlsx")
	}
	return planFromRows(rows, budget)
}

func planFromRows(rows [][]string, budget int64) (*Plan, error) {
	if len(rows) == 0 {
		return nil, eris.New("allocator: workbook is empty")
	}
	idx := fetcher.HeaderIndex(rows[0])
	col := func(name string) string { return strings.ToUpper(name) }
	if _, ok := idx[col("Project Name")]; !ok {
		return nil, eris.New("allocator: workbook has no Project Name column")
	}

	var out []Allocation
	for i, row := range rows[1:] {
		name := fetcher.Field(row, idx, col("Project Name"))
		if name == "" {
			continue
		}
		amount, err := ParseAmount(fetcher.Field(row, idx, col("Allocated Amount")))
		if err != nil {
			return nil, eris.Wrapf(err, "allocator: row %d", i+2)
		}
		status := fetcher.Field(row, idx, col("Status"))
		if status == "" {
			status = StatusPending
		}
		out = append(out, Allocation{
			ID:         len(out) + 1,
			Name:       name,
			Amount:     amount,
			Category:   fetcher.Field(row, idx, col("Category")),
			Department: fetcher.Field(row, idx, col("Department")),
			Status:     status,
		})
	}
	return NewPlan(budget, out), nil
}

// ParseAmount accepts "1234", "$1,234" and "1234.00". Fractions are dropped.
// An empty string is zero.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Errorf("allocator: invalid amount %q", s)
	}
	return int64(f), nil
}
