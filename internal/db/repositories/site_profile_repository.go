// site_profile_repository.go implements SiteProfileRepository: the per-site settings
// row and its enabled modules.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fiee/dorsale/internal/db/models"
	"github.com/jmoiron/sqlx"
)

// SiteProfileRepository handles site profile database operations
type SiteProfileRepository struct {
	db *sqlx.DB
}

// NewSiteProfileRepository creates a new SiteProfileRepository
func NewSiteProfileRepository(db *sqlx.DB) *SiteProfileRepository {
	return &SiteProfileRepository{db: db}
}

// GetBySiteID loads the profile of siteID with its modules, or nil
func (r *SiteProfileRepository) GetBySiteID(ctx context.Context, siteID int64) (*models.SiteProfile, error) {
	p := &models.SiteProfile{}
	err := r.db.GetContext(ctx, p, `
		SELECT site_id, code, base_language, admin_group_id, own_style, home_url
		FROM site_profiles
		WHERE site_id = $1
	`, siteID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get site profile %d: %w", siteID, err)
	}

	err = r.db.SelectContext(ctx, &p.Modules, `
		SELECT m.id, m.name, m.code, m.description, m.available
		FROM modules m
		JOIN site_profile_modules spm ON spm.module_id = m.id
		WHERE spm.site_id = $1
		ORDER BY m.name
	`, siteID)
	if err != nil {
		return nil, fmt.Errorf("failed to get modules of site profile %d: %w", siteID, err)
	}
	return p, nil
}

// Upsert writes the profile and replaces its module set in one transaction
func (r *SiteProfileRepository) Upsert(ctx context.Context, p *models.SiteProfile, moduleIDs []int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO site_profiles (site_id, code, base_language, admin_group_id, own_style, home_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (site_id) DO UPDATE SET
			code = EXCLUDED.code,
			base_language = EXCLUDED.base_language,
			admin_group_id = EXCLUDED.admin_group_id,
			own_style = EXCLUDED.own_style,
			home_url = EXCLUDED.home_url
	`, p.SiteID, p.Code, p.BaseLanguage, p.AdminGroupID, p.OwnStyle, p.HomeURL)
	if err != nil {
		return fmt.Errorf("failed to save site profile: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM site_profile_modules WHERE site_id = $1`, p.SiteID); err != nil {
		return fmt.Errorf("failed to clear site profile modules: %w", err)
	}
	for _, id := range moduleIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO site_profile_modules (site_id, module_id) VALUES ($1, $2)`, p.SiteID, id); err != nil {
			return fmt.Errorf("failed to add module %d: %w", id, err)
		}
	}
	return tx.Commit()
}

// Delete removes the profile of siteID
func (r *SiteProfileRepository) Delete(ctx context.Context, siteID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM site_profiles WHERE site_id = $1`, siteID)
	return err
}
