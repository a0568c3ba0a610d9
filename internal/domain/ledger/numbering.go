package ledger

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// InvoiceNumberPrefix returns the daily prefix invoice numbers share, e.g.
// "INV-20240315-".
func InvoiceNumberPrefix(date time.Time) string {
	return "INV-" + date.Format("20060102") + "-"
}

// FormatInvoiceNumber renders the seq-th invoice number of date, e.g.
// "INV-20240315-0007".
func FormatInvoiceNumber(date time.Time, seq int) string {
	return fmt.Sprintf("%s%04d", InvoiceNumberPrefix(date), seq)
}

// NextInvoiceNumber returns the number following last for date. last is the
// highest existing number of that day, or empty when the day has none.
func NextInvoiceNumber(date time.Time, last string) string {
	prefix := InvoiceNumberPrefix(date)
	seq := 0
	if strings.HasPrefix(last, prefix) {
		if n, err := strconv.Atoi(strings.TrimPrefix(last, prefix)); err == nil {
			seq = n
		}
	}
	return FormatInvoiceNumber(date, seq+1)
}
