// Package models - site_profile.go defines SiteProfile, the per-site settings that
// select styling, templates, the home page and the enabled modules.
package models

import "fmt"

// SiteProfile holds site specific settings
type SiteProfile struct {
	SiteID       int64  `json:"site_id" db:"site_id"`
	Code         string `json:"code" db:"code"`
	BaseLanguage string `json:"base_language" db:"base_language"`
	AdminGroupID *int64 `json:"admin_group_id,omitempty" db:"admin_group_id"`
	OwnStyle     bool   `json:"own_style" db:"own_style"`
	HomeURL      string `json:"home_url" db:"home_url"`

	Modules []Module `json:"modules,omitempty" db:"-"`
}

// CSS returns the stylesheet path: the site's own one if it has one.
func (p *SiteProfile) CSS() string {
	if p.OwnStyle {
		return fmt.Sprintf("css/%s.css", p.Code)
	}
	return "css/main.css"
}

func (p *SiteProfile) MenuTemplate() string {
	return fmt.Sprintf("%s/menu.html", p.Code)
}

func (p *SiteProfile) HeaderTemplate() string {
	return fmt.Sprintf("%s/header.html", p.Code)
}

// ModList returns the codes of the enabled modules.
func (p *SiteProfile) ModList() []string {
	codes := make([]string, len(p.Modules))
	for i, m := range p.Modules {
		codes[i] = m.Code
	}
	return codes
}

// HasModule reports whether the module with code is enabled.
func (p *SiteProfile) HasModule(code string) bool {
	for _, m := range p.Modules {
		if m.Code == code {
			return true
		}
	}
	return false
}

// HomeRedirect returns the configured home URL if visiting "/" should redirect.
func (p *SiteProfile) HomeRedirect() (string, bool) {
	if p == nil || p.HomeURL == "" || p.HomeURL == "/" {
		return "", false
	}
	return p.HomeURL, true
}
