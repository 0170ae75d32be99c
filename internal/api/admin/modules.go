// modules.go implements admin handlers for the modules a site profile can enable.
package admin

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/fiee/dorsale/internal/db/models"
	"github.com/fiee/dorsale/internal/db/repositories"
)

// ModuleAdminHandlers handles administrative module operations
type ModuleAdminHandlers struct {
	moduleRepo *repositories.ModuleRepository
}

// NewModuleAdminHandlers creates a new module admin handlers instance
func NewModuleAdminHandlers(db *sqlx.DB) *ModuleAdminHandlers {
	return &ModuleAdminHandlers{
		moduleRepo: repositories.NewModuleRepository(db),
	}
}

type moduleRequest struct {
	Name        string `json:"name" binding:"required,max=255"`
	Code        string `json:"code" binding:"required,max=63"`
	Description string `json:"description"`
	Available   string `json:"available" binding:"required,oneof=avail custom intg dev plan demand"`
}

func (r moduleRequest) apply(m *models.Module) {
	m.Name = r.Name
	m.Code = r.Code
	m.Description = r.Description
	m.Available = r.Available
}

func parseModuleID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid module ID"})
		return 0, false
	}
	return id, true
}

// @Summary      List modules
// @Description  Paginated list of modules ordered by name, with availability labels.
// @Tags         Modules
// @Security     Bearer
// @Produce      json
// @Param        page      query  int  false  "Page number (default 1)"
// @Param        per_page  query  int  false  "Items per page, max 100 (default 20)"
// @Success      200  {object}  map[string]interface{}  "modules, availability, pagination"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /admin/modules [get]
// ListModules lists modules with pagination
// GET /admin/modules
func (h *ModuleAdminHandlers) ListModules(c *gin.Context) {
	page, perPage, offset := pageParams(c)

	modules, total, err := h.moduleRepo.ListModules(c.Request.Context(), perPage, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list modules"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"modules":      modules,
		"availability": models.AvailabilityChoices,
		"pagination": gin.H{
			"page":     page,
			"per_page": perPage,
			"total":    total,
		},
	})
}

// GetModule returns a single module
// GET /admin/modules/:id
func (h *ModuleAdminHandlers) GetModule(c *gin.Context) {
	id, ok := parseModuleID(c)
	if !ok {
		return
	}
	module, err := h.moduleRepo.GetModuleByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve module"})
		return
	}
	if module == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Module not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"module": module, "availability_label": module.Availability()})
}

// @Summary      Create module
// @Tags         Modules
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  moduleRequest  true  "name, code, description, available"
// @Success      201  {object}  models.Module
// @Failure      400  {object}  map[string]interface{}  "Invalid request"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /admin/modules [post]
// CreateModule creates a module
// POST /admin/modules
func (h *ModuleAdminHandlers) CreateModule(c *gin.Context) {
	var req moduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	module := &models.Module{}
	req.apply(module)
	if err := h.moduleRepo.CreateModule(c.Request.Context(), module); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create module"})
		return
	}
	c.JSON(http.StatusCreated, module)
}

// UpdateModule replaces a module's fields
// PUT /admin/modules/:id
func (h *ModuleAdminHandlers) UpdateModule(c *gin.Context) {
	id, ok := parseModuleID(c)
	if !ok {
		return
	}
	var req moduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	module, err := h.moduleRepo.GetModuleByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve module"})
		return
	}
	if module == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Module not found"})
		return
	}
	req.apply(module)
	if err := h.moduleRepo.UpdateModule(c.Request.Context(), module); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update module"})
		return
	}
	c.JSON(http.StatusOK, module)
}

// DeleteModule removes a module from every site profile and deletes it
// DELETE /admin/modules/:id
func (h *ModuleAdminHandlers) DeleteModule(c *gin.Context) {
	id, ok := parseModuleID(c)
	if !ok {
		return
	}
	module, err := h.moduleRepo.GetModuleByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve module"})
		return
	}
	if module == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Module not found"})
		return
	}
	if err := h.moduleRepo.DeleteModule(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete module"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Module deleted"})
}
