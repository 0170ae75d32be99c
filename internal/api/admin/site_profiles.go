// site_profiles.go implements admin handlers for the per-site profile: styling, home
// page and enabled modules.
package admin

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/fiee/dorsale/internal/db/models"
	"github.com/fiee/dorsale/internal/db/repositories"
)

// SiteProfileHandlers handles site profile endpoints
type SiteProfileHandlers struct {
	siteRepo    *repositories.SiteRepository
	profileRepo *repositories.SiteProfileRepository
}

// NewSiteProfileHandlers creates a new SiteProfileHandlers instance
func NewSiteProfileHandlers(db *sqlx.DB) *SiteProfileHandlers {
	return &SiteProfileHandlers{
		siteRepo:    repositories.NewSiteRepository(db),
		profileRepo: repositories.NewSiteProfileRepository(db),
	}
}

type siteProfileRequest struct {
	Code         string  `json:"code" binding:"required,max=31"`
	BaseLanguage string  `json:"base_language" binding:"omitempty,bcp47_language_tag"`
	AdminGroupID *int64  `json:"admin_group_id"`
	OwnStyle     bool    `json:"own_style"`
	HomeURL      string  `json:"home_url" binding:"omitempty,max=255"`
	ModuleIDs    []int64 `json:"module_ids" binding:"dive,gt=0"`
}

func parseSiteID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("site_id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid site ID"})
		return 0, false
	}
	return id, true
}

// profileResponse adds the derived template and stylesheet paths.
func profileResponse(p *models.SiteProfile) gin.H {
	return gin.H{
		"profile":         p,
		"css":             p.CSS(),
		"menu_template":   p.MenuTemplate(),
		"header_template": p.HeaderTemplate(),
		"modules":         p.ModList(),
	}
}

// @Summary      Get site profile
// @Tags         Sites
// @Security     Bearer
// @Produce      json
// @Param        site_id  path  int  true  "Site ID"
// @Success      200  {object}  map[string]interface{}  "profile, css, menu_template, header_template, modules"
// @Failure      404  {object}  map[string]interface{}  "Site profile not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /admin/sites/{site_id}/profile [get]
// GetProfile returns the profile of a site
// GET /admin/sites/:site_id/profile
func (h *SiteProfileHandlers) GetProfile(c *gin.Context) {
	siteID, ok := parseSiteID(c)
	if !ok {
		return
	}
	profile, err := h.profileRepo.GetBySiteID(c.Request.Context(), siteID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve site profile"})
		return
	}
	if profile == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Site profile not found"})
		return
	}
	c.JSON(http.StatusOK, profileResponse(profile))
}

// @Summary      Save site profile
// @Description  Create or replace the profile of a site together with its module set.
// @Tags         Sites
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        site_id  path  int                 true  "Site ID"
// @Param        body     body  siteProfileRequest  true  "Profile"
// @Success      200  {object}  map[string]interface{}  "Saved profile"
// @Failure      400  {object}  map[string]interface{}  "Invalid request"
// @Failure      404  {object}  map[string]interface{}  "Site not found"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /admin/sites/{site_id}/profile [put]
// SaveProfile upserts the profile of a site
// PUT /admin/sites/:site_id/profile
func (h *SiteProfileHandlers) SaveProfile(c *gin.Context) {
	siteID, ok := parseSiteID(c)
	if !ok {
		return
	}
	var req siteProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	site, err := h.siteRepo.GetSiteByID(c.Request.Context(), siteID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve site"})
		return
	}
	if site == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Site not found"})
		return
	}

	if req.BaseLanguage == "" {
		req.BaseLanguage = "en"
	}
	profile := &models.SiteProfile{
		SiteID:       siteID,
		Code:         req.Code,
		BaseLanguage: req.BaseLanguage,
		AdminGroupID: req.AdminGroupID,
		OwnStyle:     req.OwnStyle,
		HomeURL:      req.HomeURL,
	}
	if err := h.profileRepo.Upsert(c.Request.Context(), profile, req.ModuleIDs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save site profile"})
		return
	}

	saved, err := h.profileRepo.GetBySiteID(c.Request.Context(), siteID)
	if err != nil || saved == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reload site profile"})
		return
	}
	c.JSON(http.StatusOK, profileResponse(saved))
}

// DeleteProfile removes the profile of a site; the site falls back to defaults
// DELETE /admin/sites/:site_id/profile
func (h *SiteProfileHandlers) DeleteProfile(c *gin.Context) {
	siteID, ok := parseSiteID(c)
	if !ok {
		return
	}
	if err := h.profileRepo.Delete(c.Request.Context(), siteID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete site profile"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Site profile deleted"})
}
