package ledger

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocationPolicy names the order in which a payment is spread over open
// invoices. Callers depend on which policy applies, so the two are never
// merged.
type AllocationPolicy string

const (
	// PolicySmallestRemainingFirst settles general payments: open invoices are
	// cleared from the smallest remaining amount up.
	PolicySmallestRemainingFirst AllocationPolicy = "smallest_remaining_first"
	// PolicyTargetedOverflow settles a payment aimed at one invoice: the target
	// first, then the counterparty's other open invoices oldest first.
	PolicyTargetedOverflow AllocationPolicy = "targeted_overflow"
	// PolicyDirect settles exactly one invoice and refuses any overflow.
	PolicyDirect AllocationPolicy = "direct"
)

// String returns the string representation of AllocationPolicy
func (p AllocationPolicy) String() string {
	return string(p)
}

// OpenInvoice is the view of an invoice the allocator works with
type OpenInvoice struct {
	ID        uuid.UUID
	Number    string
	Date      time.Time
	CreatedAt time.Time
	Remaining decimal.Decimal
}

// Allocation assigns part of a payment to one invoice, or to no invoice when
// InvoiceID is nil (an unlinked remainder).
type Allocation struct {
	InvoiceID       *uuid.UUID      `json:"invoice_id"`
	InvoiceNumber   string          `json:"invoice_number,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	RemainingBefore decimal.Decimal `json:"remaining_before"`
	RemainingAfter  decimal.Decimal `json:"remaining_after"`
}

// IsUnlinked reports whether the allocation carries no invoice
func (a Allocation) IsUnlinked() bool {
	return a.InvoiceID == nil
}

// SmallestRemainingFirst orders invoices by ascending remaining amount. Ties
// fall back to invoice date, then number, so the order is deterministic.
func SmallestRemainingFirst(invoices []OpenInvoice) []OpenInvoice {
	sorted := make([]OpenInvoice, len(invoices))
	copy(sorted, invoices)
	sort.SliceStable(sorted, func(i, j int) bool {
		if c := sorted[i].Remaining.Cmp(sorted[j].Remaining); c != 0 {
			return c < 0
		}
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].Number < sorted[j].Number
	})
	return sorted
}

// TargetFirstThenOldest puts target at the head of the queue, followed by the
// other invoices by ascending date (creation time, then number, on ties).
// target is removed from others if present.
func TargetFirstThenOldest(target OpenInvoice, others []OpenInvoice) []OpenInvoice {
	rest := make([]OpenInvoice, 0, len(others))
	for _, inv := range others {
		if inv.ID != target.ID {
			rest = append(rest, inv)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool {
		if !rest[i].Date.Equal(rest[j].Date) {
			return rest[i].Date.Before(rest[j].Date)
		}
		if !rest[i].CreatedAt.Equal(rest[j].CreatedAt) {
			return rest[i].CreatedAt.Before(rest[j].CreatedAt)
		}
		return rest[i].Number < rest[j].Number
	})
	return append([]OpenInvoice{target}, rest...)
}

// Distribute walks queue greedily, giving each invoice min(amount left, its
// remaining). Invoices with nothing remaining are skipped. Whatever is left
// after the queue is exhausted becomes one trailing unlinked allocation, so
// the allocated amounts always sum to amount exactly.
func Distribute(amount decimal.Decimal, queue []OpenInvoice) ([]Allocation, error) {
	left, err := ValidatePositiveAmount(amount)
	if err != nil {
		return nil, err
	}

	allocations := make([]Allocation, 0, len(queue)+1)
	for _, inv := range queue {
		if !left.IsPositive() {
			break
		}
		remaining := RoundMoney(inv.Remaining)
		if !remaining.IsPositive() {
			continue
		}
		share := decimal.Min(left, remaining)
		id := inv.ID
		allocations = append(allocations, Allocation{
			InvoiceID:       &id,
			InvoiceNumber:   inv.Number,
			Amount:          share,
			RemainingBefore: remaining,
			RemainingAfter:  RoundMoney(remaining.Sub(share)),
		})
		left = RoundMoney(left.Sub(share))
	}

	if left.IsPositive() {
		allocations = append(allocations, Allocation{
			Amount:          left,
			RemainingBefore: decimal.Zero,
			RemainingAfter:  decimal.Zero,
		})
	}
	return allocations, nil
}

// TotalAllocated sums the amounts of allocs
func TotalAllocated(allocs []Allocation) decimal.Decimal {
	total := decimal.Zero
	for _, a := range allocs {
		total = total.Add(a.Amount)
	}
	return RoundMoney(total)
}

// UnlinkedAmount returns the part of allocs not assigned to any invoice
func UnlinkedAmount(allocs []Allocation) decimal.Decimal {
	total := decimal.Zero
	for _, a := range allocs {
		if a.IsUnlinked() {
			total = total.Add(a.Amount)
		}
	}
	return RoundMoney(total)
}
