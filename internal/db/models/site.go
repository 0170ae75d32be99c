// Package models - site.go defines the Site model, the tenant every record belongs to.
// Sites are resolved from the request host name.
package models

// Site represents one served domain
type Site struct {
	ID     int64  `json:"id" db:"id"`
	Domain string `json:"domain" db:"domain"`
	Name   string `json:"name" db:"name"`
}
