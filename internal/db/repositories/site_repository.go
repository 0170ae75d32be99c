// site_repository.go implements SiteRepository for tenant lookups by host name.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fiee/dorsale/internal/db/models"
	"github.com/jmoiron/sqlx"
)

// SiteRepository handles site database operations
type SiteRepository struct {
	db *sqlx.DB
}

// NewSiteRepository creates a new SiteRepository
func NewSiteRepository(db *sqlx.DB) *SiteRepository {
	return &SiteRepository{db: db}
}

// GetSiteByDomain retrieves the site serving domain, or nil
func (r *SiteRepository) GetSiteByDomain(ctx context.Context, domain string) (*models.Site, error) {
	site := &models.Site{}
	err := r.db.GetContext(ctx, site, `SELECT id, domain, name FROM sites WHERE domain = $1`, domain)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get site %q: %w", domain, err)
	}
	return site, nil
}

// GetSiteByID retrieves a site by ID, or nil
func (r *SiteRepository) GetSiteByID(ctx context.Context, id int64) (*models.Site, error) {
	site := &models.Site{}
	err := r.db.GetContext(ctx, site, `SELECT id, domain, name FROM sites WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get site %d: %w", id, err)
	}
	return site, nil
}

// CreateSite creates a new site
func (r *SiteRepository) CreateSite(ctx context.Context, site *models.Site) error {
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO sites (domain, name) VALUES ($1, $2) RETURNING id`, site.Domain, site.Name,
	).Scan(&site.ID)
	if err != nil {
		return fmt.Errorf("failed to create site: %w", err)
	}
	return nil
}
