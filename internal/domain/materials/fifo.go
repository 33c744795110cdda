package materials

import (
	"slices"
	"time"

	"sitetrack/internal/core/apperror"
	"sitetrack/internal/core/id"
	"sitetrack/internal/core/types"
)

// fifoCompare orders batches oldest delivery first. Ties fall back to creation
// time and then to the (time-ordered) id, so the order is total and stable.
func fifoCompare(a, b *Batch) int {
	if c := a.DeliveredDate.Compare(b.DeliveredDate); c != 0 {
		return c
	}
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return id.Compare(a.ID, b.ID)
}

// SortFIFO sorts batches in consumption order.
func SortFIFO(batches []*Batch) {
	slices.SortStableFunc(batches, fifoCompare)
}

// TotalRemaining sums remaining quantity over batches. The sum saturates
// rather than wrapping.
func TotalRemaining(batches []*Batch) types.Quantity {
	var total types.Quantity
	for _, b := range batches {
		total = total.Add(b.RemainingQuantity)
	}
	return total
}

// PlanConsumption decides how much to take from each batch without mutating
// anything. Batches with nothing left are ignored.
//
// Errors: MaterialNotFound when no batch has stock, InsufficientStock when the
// aggregate remaining is below requested.
func PlanConsumption(code string, batches []*Batch, requested types.Quantity) ([]Allocation, error) {
	if !requested.IsPositive() {
		return nil, apperror.NewValidation("quantity must be positive").WithDetail("field", "quantity")
	}

	candidates := make([]*Batch, 0, len(batches))
	for _, b := range batches {
		if b.RemainingQuantity.IsPositive() && !b.IsDeleted() {
			candidates = append(candidates, b)
		}
	}
	if len(candidates) == 0 {
		return nil, apperror.NewMaterialNotFound(code)
	}

	SortFIFO(candidates)

	available := TotalRemaining(candidates)
	if available < requested {
		return nil, apperror.NewInsufficientStock(code, requested.String(), available.String())
	}

	allocations := make([]Allocation, 0, 2)
	needed := requested
	for _, b := range candidates {
		if needed.IsZero() {
			break
		}
		take := types.MinQuantity(b.RemainingQuantity, needed)
		allocations = append(allocations, Allocation{
			BatchID:        b.ID,
			DeliveredDate:  b.DeliveredDate,
			Quantity:       take,
			RemainingAfter: b.RemainingQuantity - take,
		})
		needed -= take
	}

	return allocations, nil
}

// ApplyAllocation deducts an allocation from its batch and returns the usage
// event to append.
func ApplyAllocation(b *Batch, a Allocation, takenBy string, date time.Time) UsageEvent {
	b.RemainingQuantity -= a.Quantity
	b.UpdatedAt = time.Now().UTC()

	event := UsageEvent{
		ID:        id.New(),
		BatchID:   b.ID,
		TakenBy:   takenBy,
		Quantity:  a.Quantity,
		Date:      date,
		CreatedAt: b.UpdatedAt,
	}
	b.UsageEvents = append(b.UsageEvents, event)
	return event
}
