// internal/notify/render.go
package notify

import (
	"fmt"
	"strings"
	"text/template"

	"stockwatch/internal/models"

	"github.com/shopspring/decimal"
)

var alertBodyTmpl = template.Must(template.New("priceAlert").Parse(
	`Your price alert for {{.StockName}} ({{.Symbol}}) has been triggered!

Alert Condition: {{.ConditionLabel}}
Threshold: ${{.Threshold}}
Current Price: ${{.ObservedPrice}}

Best regards,
Stock Watchlist Team
`))

type alertMessageData struct {
	StockName      string
	Symbol         string
	ConditionLabel string
	Threshold      string
	ObservedPrice  string
}

// ConditionLabel maps a condition type to its human-readable name.
func ConditionLabel(t models.ConditionType) string {
	switch t {
	case models.ConditionPriceAbove:
		return "Price Above"
	case models.ConditionPriceBelow:
		return "Price Below"
	case models.ConditionPercentChange:
		return "Percent Change"
	default:
		return string(t)
	}
}

// RenderPriceAlert produces the subject and body for a triggered alert.
func RenderPriceAlert(alert *models.Alert, stockName string, observedPrice decimal.Decimal) (subject, body string) {
	subject = fmt.Sprintf("Price Alert: %s", alert.Symbol)

	var sb strings.Builder
	_ = alertBodyTmpl.Execute(&sb, alertMessageData{
		StockName:      stockName,
		Symbol:         alert.Symbol,
		ConditionLabel: ConditionLabel(alert.ConditionType),
		Threshold:      alert.ThresholdValue.StringFixed(2),
		ObservedPrice:  observedPrice.StringFixed(2),
	})
	return subject, sb.String()
}
