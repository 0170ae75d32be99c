// module_repository.go implements ModuleRepository: CRUD and paging for the modules
// a site profile can enable.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fiee/dorsale/internal/db/models"
	"github.com/jmoiron/sqlx"
)

// ModuleRepository handles module database operations
type ModuleRepository struct {
	db *sqlx.DB
}

// NewModuleRepository creates a new module repository
func NewModuleRepository(db *sqlx.DB) *ModuleRepository {
	return &ModuleRepository{db: db}
}

// CreateModule creates a new module
func (r *ModuleRepository) CreateModule(ctx context.Context, module *models.Module) error {
	if !models.ValidAvailability(module.Available) {
		return fmt.Errorf("invalid availability %q", module.Available)
	}
	query := `
		INSERT INTO modules (name, code, description, available)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := r.db.QueryRowxContext(ctx, query,
		module.Name, module.Code, module.Description, module.Available,
	).Scan(&module.ID)
	if err != nil {
		return fmt.Errorf("failed to create module: %w", err)
	}
	return nil
}

// GetModuleByID retrieves a module by ID, or nil
func (r *ModuleRepository) GetModuleByID(ctx context.Context, id int64) (*models.Module, error) {
	m := &models.Module{}
	err := r.db.GetContext(ctx, m, `SELECT id, name, code, description, available FROM modules WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// UpdateModule updates an existing module
func (r *ModuleRepository) UpdateModule(ctx context.Context, module *models.Module) error {
	if !models.ValidAvailability(module.Available) {
		return fmt.Errorf("invalid availability %q", module.Available)
	}
	query := `
		UPDATE modules
		SET name = $2, code = $3, description = $4, available = $5
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query,
		module.ID, module.Name, module.Code, module.Description, module.Available)
	return err
}

// DeleteModule removes a module; site profiles drop it through the join table cascade
func (r *ModuleRepository) DeleteModule(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM modules WHERE id = $1`, id)
	return err
}

// CountModules returns the number of modules
func (r *ModuleRepository) CountModules(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM modules`); err != nil {
		return 0, fmt.Errorf("failed to count modules: %w", err)
	}
	return total, nil
}

// ListModules returns a page of modules ordered by name, and the total count
func (r *ModuleRepository) ListModules(ctx context.Context, limit, offset int) ([]*models.Module, int, error) {
	total, err := r.CountModules(ctx)
	if err != nil {
		return nil, 0, err
	}
	modules, err := r.SelectModules(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return modules, total, nil
}

// SelectModules returns limit modules ordered by name, starting at offset
func (r *ModuleRepository) SelectModules(ctx context.Context, limit, offset int) ([]*models.Module, error) {
	var modules []*models.Module
	err := r.db.SelectContext(ctx, &modules,
		`SELECT id, name, code, description, available FROM modules ORDER BY name LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list modules: %w", err)
	}
	return modules, nil
}
