package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractExcel renders every sheet as tab-separated rows. Blank rows are dropped.
func extractExcel(content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	var lines []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.Rows(sheet)
		if err != nil {
			return "", fmt.Errorf("rows for sheet %q: %w", sheet, err)
		}
		for rows.Next() {
			cols, err := rows.Columns()
			if err != nil {
				_ = rows.Close()
				return "", fmt.Errorf("read row in sheet %q: %w", sheet, err)
			}
			line := strings.TrimRight(strings.Join(cols, "\t"), "\t ")
			if line != "" {
				lines = append(lines, line)
			}
		}
		if err := rows.Close(); err != nil {
			return "", fmt.Errorf("close rows for sheet %q: %w", sheet, err)
		}
	}
	return strings.Join(lines, "\n"), nil
}
