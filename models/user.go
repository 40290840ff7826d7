package models

import (
	"time"
)

// User represents a participant with a balance and accrued experience
type User struct {
	ID               int64     `db:"id"`
	Username         string    `db:"username"`
	Balance          int64     `db:"balance"`
	XP               int64     `db:"xp"`
	Banned           bool      `db:"banned"`
	AvailableBalance int64     `db:"-"` // Calculated field: balance minus stakes escrowed in open games
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}
