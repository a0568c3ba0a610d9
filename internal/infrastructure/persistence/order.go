package persistence

import (
	"strings"

	"github.com/erp/ledger/internal/domain/shared"
	"gorm.io/gorm/clause"
)

// sortableInvoiceColumns are the invoice columns a list request may order by.
var sortableInvoiceColumns = []string{"date", "number", "total_amount", "status", "created_at"}

// sortableProductColumns are the product columns a list request may order by.
var sortableProductColumns = []string{"name", "quantity", "type", "updated_at", "created_at"}

// containsPattern builds a case-insensitive LIKE pattern matching s anywhere.
// LIKE wildcards in s match literally.
func containsPattern(s string) string {
	s = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(strings.ToLower(s))
	return "%" + s + "%"
}

// orderColumns turns a caller-supplied ordering into ORDER BY columns.
// Unknown columns fall back to fallback and anything other than "asc" sorts
// descending, so request input never reaches the SQL text. tieBreak is
// appended in the same direction to keep pages stable.
func orderColumns(f shared.Filter, allowed []string, fallback, tieBreak string) []clause.OrderByColumn {
	column := fallback
	if requested := strings.TrimSpace(f.OrderBy); requested != "" {
		for _, c := range allowed {
			if c == requested {
				column = c
				break
			}
		}
	}
	desc := !strings.EqualFold(strings.TrimSpace(f.OrderDir), "asc")

	cols := []clause.OrderByColumn{{Column: clause.Column{Name: column}, Desc: desc}}
	if tieBreak != "" && tieBreak != column {
		cols = append(cols, clause.OrderByColumn{Column: clause.Column{Name: tieBreak}, Desc: desc})
	}
	return cols
}
