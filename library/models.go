package library

import (
	"time"

	"github.com/google/uuid"
)

// Role is the access level stored with every user account.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleUser    Role = "user"
	RoleStudent Role = "student"
)

// Action is what a borrow ledger event records.
type Action string

const (
	ActionBorrowed Action = "borrowed"
	ActionReturned Action = "returned"
)

func (a Action) valid() bool { return a == ActionBorrowed || a == ActionReturned }

// TimestampLayout is how borrow events are timestamped on disk.
const TimestampLayout = "2006-01-02 15:04:05"

// UserAccount is a registered user. Usernames are unique.
type UserAccount struct {
	Username string `json:"username"`
	Password string `json:"-"` // plaintext unless hashing is enabled
	Role     Role   `json:"role"`
}

// BookEntry is one catalog line. The title is used for lookup and removal.
type BookEntry struct {
	Title  string `json:"title"`
	Author string `json:"author"`
}

// BorrowEvent is one immutable ledger line. A zero Timestamp means the ledger
// does not record times.
type BorrowEvent struct {
	Username  string    `json:"username"`
	Title     string    `json:"title"`
	Action    Action    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the logged-in context passed to every role-gated operation.
type Session struct {
	ID        uuid.UUID
	Username  string
	Role      Role
	StartedAt time.Time

	ended bool
}

// Active reports whether the session has not been logged out.
func (s *Session) Active() bool { return s != nil && !s.ended }

// IsAdmin reports whether the session belongs to an administrator.
func (s *Session) IsAdmin() bool { return s != nil && s.Role == RoleAdmin }
