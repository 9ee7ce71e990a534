package models

import (
	"time"

	"github.com/uptrace/bun"
)

// AnalyticsEvent is append-only. Data captures the booking identity and
// price as they were at creation time.
type AnalyticsEvent struct {
	bun.BaseModel `bun:"table:analytics,alias:ae"`

	ID        int64                  `bun:"id,pk,autoincrement" json:"id"`
	EventType string                 `bun:"event_type,notnull" json:"eventType"`
	UserID    int64                  `bun:"user_id,notnull" json:"userId"`
	Data      map[string]interface{} `bun:"data,notnull" json:"data"`
	CreatedAt time.Time              `bun:"created_at,notnull" json:"createdAt"`
}

// AnalyticsDelivery records that an analytics row reached the downstream
// sink. Kept apart from AnalyticsEvent so the event row is never updated.
type AnalyticsDelivery struct {
	bun.BaseModel `bun:"table:analytics_deliveries"`

	AnalyticsID int64     `bun:"analytics_id,pk" json:"analyticsId"`
	DeliveredAt time.Time `bun:"delivered_at,notnull" json:"deliveredAt"`
}

func BookingCreatedEventType(t BookingType) string {
	return string(t) + "_booking_created"
}
