// Package export renders saved extraction results as spreadsheets.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrNoData is returned for an empty extraction result.
var ErrNoData = errors.New("no data to export")

const maxSheetName = 31

// WriteXLSX renders data as a workbook and writes it to w.
func WriteXLSX(w io.Writer, data any) error {
	f, err := Workbook(data)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Workbook builds one sheet per top-level key of an extraction result such
// as {"table_1": [{...}, ...]}. Lists of objects become a header row plus
// one row per object, lists of lists are written as-is, and any other
// value lands on a key/value sheet named "data".
func Workbook(data any) (*excelize.File, error) {
	sheets, err := layout(data)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	for i, sh := range sheets {
		if i == 0 {
			f.SetSheetName("Sheet1", sh.name)
		} else if _, err := f.NewSheet(sh.name); err != nil {
			f.Close()
			return nil, fmt.Errorf("create sheet %q: %w", sh.name, err)
		}
		for r, row := range sh.rows {
			for c, v := range row {
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					f.Close()
					return nil, err
				}
				if err := f.SetCellValue(sh.name, cell, v); err != nil {
					f.Close()
					return nil, fmt.Errorf("set %s!%s: %w", sh.name, cell, err)
				}
			}
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

type sheet struct {
	name string
	rows [][]any
}

func layout(data any) ([]sheet, error) {
	switch v := data.(type) {
	case nil:
		return nil, ErrNoData
	case map[string]any:
		if len(v) == 0 {
			return nil, ErrNoData
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var out []sheet
		var loose [][]any
		names := map[string]bool{}
		for _, k := range keys {
			if rows, ok := tableRows(v[k]); ok {
				out = append(out, sheet{name: uniqueName(sheetName(k), names), rows: rows})
				continue
			}
			loose = append(loose, []any{k, cellValue(v[k])})
		}
		if len(loose) > 0 {
			out = append(out, sheet{name: uniqueName("data", names), rows: append([][]any{{"attribute", "value"}}, loose...)})
		}
		return out, nil
	default:
		if rows, ok := tableRows(v); ok {
			return []sheet{{name: "data", rows: rows}}, nil
		}
		return []sheet{{name: "data", rows: [][]any{{"value"}, {cellValue(v)}}}}, nil
	}
}

// tableRows reports whether v is a list of rows and lays it out.
func tableRows(v any) ([][]any, bool) {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return nil, false
	}

	switch list[0].(type) {
	case map[string]any:
		var header []string
		seen := map[string]bool{}
		for _, item := range list {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, false
			}
			keys := make([]string, 0, len(obj))
			for k := range obj {
				if !seen[k] {
					keys = append(keys, k)
				}
			}
			sort.Strings(keys)
			for _, k := range keys {
				seen[k] = true
				header = append(header, k)
			}
		}
		rows := make([][]any, 0, len(list)+1)
		head := make([]any, len(header))
		for i, h := range header {
			head[i] = h
		}
		rows = append(rows, head)
		for _, item := range list {
			obj := item.(map[string]any)
			row := make([]any, len(header))
			for i, h := range header {
				row[i] = cellValue(obj[h])
			}
			rows = append(rows, row)
		}
		return rows, true
	case []any:
		rows := make([][]any, 0, len(list))
		for _, item := range list {
			cells, ok := item.([]any)
			if !ok {
				return nil, false
			}
			row := make([]any, len(cells))
			for i, c := range cells {
				row[i] = cellValue(c)
			}
			rows = append(rows, row)
		}
		return rows, true
	}
	return nil, false
}

func cellValue(v any) any {
	switch x := v.(type) {
	case nil:
		return ""
	case string, float64, bool:
		return x
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

var sheetNameReplacer = strings.NewReplacer(":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_")

func sheetName(s string) string {
	s = strings.Trim(sheetNameReplacer.Replace(strings.TrimSpace(s)), "'")
	if s == "" {
		s = "sheet"
	}
	if r := []rune(s); len(r) > maxSheetName {
		s = string(r[:maxSheetName])
	}
	return s
}

// uniqueName suffixes name until it is unused, comparing case-insensitively
// as spreadsheet applications do.
func uniqueName(name string, used map[string]bool) string {
	candidate := name
	for i := 2; used[strings.ToLower(candidate)]; i++ {
		suffix := fmt.Sprintf("_%d", i)
		r := []rune(name)
		if len(r)+len(suffix) > maxSheetName {
			r = r[:maxSheetName-len(suffix)]
		}
		candidate = string(r) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}
