// internal/queue/unit.go
package queue

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DispatchUnit is the payload handed from alert evaluation to notification
// delivery: the minimal facts needed to render and send one notification.
type DispatchUnit struct {
	AlertID       uuid.UUID       `json:"alertId"`
	ObservedPrice decimal.Decimal `json:"observedPrice"`
	ObservedAt    time.Time       `json:"observedAt"`
}

// DispatchUnitSchema validates dispatch units coming off the queue before
// they reach the dispatcher. A payload that fails here is dropped, not
// retried: redelivery cannot fix a malformed message.
const DispatchUnitSchema = `{
	"type": "object",
	"properties": {
		"alertId": {"type": "string", "minLength": 36, "maxLength": 36},
		"observedPrice": {"type": ["string", "number"]},
		"observedAt": {"type": "string"}
	},
	"required": ["alertId", "observedPrice", "observedAt"],
	"additionalProperties": false
}`
