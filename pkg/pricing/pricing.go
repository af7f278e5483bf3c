// Package pricing computes booking subtotals from participant counts and the
// price snapshot frozen on the booking detail. It is pure arithmetic with no
// I/O so services and the update path share one implementation.
package pricing

import (
	"fmt"

	"github.com/wandertrip/booking-backend/internal/models"
)

// Line is one participant category priced at a unit rate
type Line struct {
	Label     string
	Count     int
	UnitPrice float64
}

// Subtotal sums count x unit price across lines. At least one participant is
// required and every priced category must carry a non-negative rate.
func Subtotal(lines []Line) (float64, error) {
	total := 0.0
	participants := 0
	for _, l := range lines {
		if l.Count < 0 {
			return 0, fmt.Errorf("%s count must not be negative", l.Label)
		}
		if l.Count == 0 {
			continue
		}
		if l.UnitPrice < 0 {
			return 0, fmt.Errorf("%s price must not be negative", l.Label)
		}
		participants += l.Count
		total += float64(l.Count) * l.UnitPrice
	}
	if participants == 0 {
		return 0, fmt.Errorf("at least one participant is required")
	}
	return total, nil
}

// TourSubtotal prices a tour booking against its price-by-age snapshot
func TourSubtotal(adults, children, infants int, price models.PriceByAge) (float64, error) {
	return Subtotal([]Line{
		{Label: "adult", Count: adults, UnitPrice: price.Adult},
		{Label: "child", Count: children, UnitPrice: price.Child},
		{Label: "infant", Count: infants, UnitPrice: price.Infant},
	})
}

// FlightSubtotal prices one flight leg. All passengers on a leg fly the same
// class, so every category uses the class rate.
func FlightSubtotal(adults, children, infants int, price models.PriceByClass, class models.FlightClass) (float64, error) {
	var rate float64
	switch class {
	case models.FlightClassEconomy:
		rate = price.Economy
	case models.FlightClassBusiness:
		rate = price.Business
	default:
		return 0, fmt.Errorf("unknown flight class %q", class)
	}
	return Subtotal([]Line{
		{Label: "adult", Count: adults, UnitPrice: rate},
		{Label: "child", Count: children, UnitPrice: rate},
		{Label: "infant", Count: infants, UnitPrice: rate},
	})
}

// ActivitySubtotal prices an activity booking against its retail snapshot
func ActivitySubtotal(adults, children, babies, seniors int, price models.RetailPrice) (float64, error) {
	return Subtotal([]Line{
		{Label: "adult", Count: adults, UnitPrice: price.Adult},
		{Label: "child", Count: children, UnitPrice: price.Child},
		{Label: "baby", Count: babies, UnitPrice: price.Baby},
		{Label: "senior", Count: seniors, UnitPrice: price.Senior},
	})
}
