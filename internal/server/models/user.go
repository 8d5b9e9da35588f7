// Package models defines server-side data models persisted in the database.
package models

import "time"

// Role discriminates the two account kinds and selects the validation rules.
type Role string

const (
	RoleMusician      Role = "musician"
	RoleMusicianGroup Role = "musician_group"
)

type User struct {
	ID               string
	Email            string
	PasswordVerifier string
	Role             Role
	Name             string
	BirthDate        time.Time
	// NumberOfParticipants is set only for musician_group accounts.
	NumberOfParticipants *int
	Active               bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
