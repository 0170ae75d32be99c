// Package models - user.go defines the User and Group models. Users are the actors
// stamped into created_by/modified_by; groups are optional ownership units.
package models

import "time"

// User represents an account that can act on records
type User struct {
	ID           int64     `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	IsSuperuser  bool      `json:"is_superuser" db:"is_superuser"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// CanAct reports whether the user may own or modify records.
func (u *User) CanAct() bool {
	return u != nil && u.IsActive
}

// Group represents a named set of users
type Group struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// GroupIDs extracts the ids of gs.
func GroupIDs(gs []Group) []int64 {
	ids := make([]int64, len(gs))
	for i, g := range gs {
		ids[i] = g.ID
	}
	return ids
}
