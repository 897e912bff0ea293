// internal/alerts/evaluator.go
package alerts

import (
	"fmt"

	"stockwatch/internal/models"

	"github.com/shopspring/decimal"
)

// Evaluate decides whether a condition fires against the current price.
// Pure: no I/O, no side effects.
//
// Comparisons are strict, so a price exactly at the threshold never fires
// either direction. PERCENT_CHANGE has no previous-price reference defined
// yet and never fires; it is an explicit placeholder, not a bug.
//
// An unrecognized condition type is a programming fault, not a runtime
// condition: Evaluate panics rather than silently returning false.
func Evaluate(cond models.Condition, currentPrice decimal.Decimal) bool {
	switch cond.Type {
	case models.ConditionPriceAbove:
		return currentPrice.GreaterThan(cond.Threshold)
	case models.ConditionPriceBelow:
		return currentPrice.LessThan(cond.Threshold)
	case models.ConditionPercentChange:
		return false
	default:
		panic(fmt.Sprintf("alerts: unknown condition type %q", cond.Type))
	}
}
