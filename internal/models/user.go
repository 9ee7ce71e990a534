package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is owned by the identity service; bookings only read it.
type User struct {
	bun.BaseModel `bun:"table:users"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	Email     string    `bun:"email,unique,notnull" json:"email"`
	FullName  string    `bun:"full_name,notnull" json:"fullName"`
	Role      string    `bun:"role,notnull" json:"role"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
}
