package entities

import (
	"fmt"
	"strings"
	"time"
)

// Lab represents a canonical laboratory. One Lab row stands for one
// real-world lab regardless of how many naming variants appear in documents;
// uniqueness is enforced by resolution, not by the name column.
type Lab struct {
	ID            string     `json:"id" db:"id"`
	Name          string     `json:"name" db:"name"`
	Address       *string    `json:"address,omitempty" db:"address"`
	Phone         *string    `json:"phone,omitempty" db:"phone"`
	Email         *string    `json:"email,omitempty" db:"email"`
	Accreditation *string    `json:"accreditation,omitempty" db:"accreditation"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// DescriptorText renders the lab as a single free-text descriptor for the
// similarity matcher. Only populated fields are included.
func (l *Lab) DescriptorText() string {
	parts := []string{fmt.Sprintf("Name: %s", l.Name)}
	if l.Address != nil && *l.Address != "" {
		parts = append(parts, fmt.Sprintf("Address: %s", *l.Address))
	}
	if l.Phone != nil && *l.Phone != "" {
		parts = append(parts, fmt.Sprintf("Phone: %s", *l.Phone))
	}
	return strings.Join(parts, ", ")
}
