package model

import "time"

// GroupHR is the audience notified about document lifecycle events.
const GroupHR = "hr"

type User struct {
	ID         int64     `db:"id"`
	Username   string    `db:"username"`
	Email      string    `db:"email"`
	Phone      string    `db:"phone"`
	FirstName  string    `db:"first_name"`
	LastName   string    `db:"last_name"`
	EmployerID *int64    `db:"employer_id"` // nullable
	Active     bool      `db:"active"`
	CreatedAt  time.Time `db:"created_at"`
}

// DisplayName prefers the full name and falls back to the username.
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Username
	}
}
