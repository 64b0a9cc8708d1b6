package entities

import (
	"time"
)

// User is the owner of a longitudinal test history.
type User struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Sex         string    `json:"sex" db:"sex"` // M, F or O
	DateOfBirth time.Time `json:"date_of_birth" db:"date_of_birth"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
