package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is one completed on-duty period as stored in the archive.
type Session struct {
	ID        uuid.UUID     `db:"id"`
	UserID    string        `db:"user_id"`
	Username  string        `db:"username"`
	ClockIn   time.Time     `db:"clock_in"`
	ClockOut  time.Time     `db:"clock_out"`
	Duration  time.Duration `db:"duration_seconds"`
	Reason    string        `db:"reason"`
	CreatedAt time.Time     `db:"created_at"`
}
