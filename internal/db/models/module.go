// Package models - module.go defines the Module model: an installable application
// feature that a site profile may enable, together with its availability state.
package models

import "fmt"

// Availability states of a module.
const (
	AvailabilityAvailable   = "avail"
	AvailabilityCustom      = "custom"
	AvailabilityIntegration = "intg"
	AvailabilityDevelopment = "dev"
	AvailabilityPlanned     = "plan"
	AvailabilityOnDemand    = "demand"
)

// AvailabilityChoices lists the allowed states in display order with their labels.
var AvailabilityChoices = []struct {
	Code  string
	Label string
}{
	{AvailabilityAvailable, "available"},
	{AvailabilityCustom, "customer specific"},
	{AvailabilityIntegration, "in integration"},
	{AvailabilityDevelopment, "in development"},
	{AvailabilityPlanned, "planned"},
	{AvailabilityOnDemand, "on demand"},
}

// Module represents an application feature
type Module struct {
	ID          int64  `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Code        string `json:"code" db:"code"`
	Description string `json:"description" db:"description"`
	Available   string `json:"available" db:"available"`
}

// Availability returns the label for the module's state.
func (m *Module) Availability() string {
	for _, c := range AvailabilityChoices {
		if c.Code == m.Available {
			return c.Label
		}
	}
	return m.Available
}

func (m *Module) String() string {
	return fmt.Sprintf("%s (%s)", m.Name, m.Availability())
}

// ValidAvailability reports whether code is one of the known states.
func ValidAvailability(code string) bool {
	for _, c := range AvailabilityChoices {
		if c.Code == code {
			return true
		}
	}
	return false
}
