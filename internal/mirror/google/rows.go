package google

import (
	"fmt"
	"strings"

	"expensa/internal/mirror"
)

// Column layout of the mirror sheet, A through G.
var header = []any{"Date", "Description", "Amount", "Category", "Subcategory", "Expense ID", "User ID"}

const (
	idColumn    = "F"
	lastColumn  = "G"
	idColumnIdx = 5
)

func toValues(r mirror.Row) []any {
	return []any{
		r.Date.String(),
		r.Description,
		r.Amount.Euros(),
		r.Category,
		r.Subcategory,
		r.ExpenseID,
		r.UserID,
	}
}

// findRow returns the 1-based sheet row holding expenseID in a single
// column read starting at row 1, or -1.
func findRow(values [][]any, expenseID string) int {
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == expenseID {
			return i + 1
		}
	}
	return -1
}

// idsForUser picks the expense IDs of rows owned by userID from an
// ID-column-through-user-column read.
func idsForUser(values [][]any, userID string) []string {
	var ids []string
	for _, row := range values {
		if len(row) < 2 {
			continue
		}
		id := strings.TrimSpace(fmt.Sprint(row[0]))
		if id != "" && strings.TrimSpace(fmt.Sprint(row[len(row)-1])) == userID {
			ids = append(ids, id)
		}
	}
	return ids
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func rowRange(sheet string, row int) string {
	return fmt.Sprintf("%s!A%d:%s%d", quoteSheet(sheet), row, lastColumn, row)
}
