package extract

import (
	"strings"

	"github.com/tealeg/xlsx/v2"
)

// extractXLSX flattens every sheet into tab-separated lines. Pricing
// attachments frequently arrive as spreadsheets; downstream extraction
// only needs the cell text, not the grid.
func extractXLSX(path string) (*Extraction, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, &ExtractionError{Reason: ReasonCorruptFile, Path: path, Err: err}
	}

	var sb strings.Builder
	for _, sheet := range f.Sheets {
		if sheet.Name != "" {
			sb.WriteString(sheet.Name)
			sb.WriteByte('\n')
		}
		for _, row := range sheet.Rows {
			cells := make([]string, 0, len(row.Cells))
			empty := true
			for _, cell := range row.Cells {
				v := cell.String()
				if strings.TrimSpace(v) != "" {
					empty = false
				}
				cells = append(cells, v)
			}
			if empty {
				continue
			}
			sb.WriteString(strings.Join(cells, "\t"))
			sb.WriteByte('\n')
		}
	}
	return finish(path, "xlsx", sb.String(), len(f.Sheets))
}
