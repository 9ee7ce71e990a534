package models

import (
	"time"

	"github.com/uptrace/bun"
)

type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

// Notification is immutable here; IsRead belongs to the inbox component.
type Notification struct {
	bun.BaseModel `bun:"table:notifications"`

	ID        int64            `bun:"id,pk,autoincrement" json:"id"`
	UserID    int64            `bun:"user_id,notnull" json:"userId"`
	AdminID   *int64           `bun:"admin_id" json:"adminId,omitempty"`
	Title     string           `bun:"title,notnull" json:"title"`
	Message   string           `bun:"message,notnull" json:"message"`
	Type      NotificationType `bun:"type,notnull" json:"type"`
	IsRead    bool             `bun:"is_read,notnull" json:"isRead"`
	CreatedAt time.Time        `bun:"created_at,notnull" json:"createdAt"`
}
