package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fiee/dorsale/internal/api/generic"
	"github.com/fiee/dorsale/internal/config"
	"github.com/fiee/dorsale/internal/db/repositories"
	"github.com/fiee/dorsale/internal/middleware"
	"github.com/fiee/dorsale/internal/pagination"
)

// pageData fills the layout keys shared by the site pages.
func pageData(c *gin.Context, flashes *generic.Flashes, data gin.H) gin.H {
	data["Actor"] = middleware.Actor(c)
	data["Profile"] = middleware.SiteProfile(c)
	if flashes != nil {
		data["Messages"] = flashes.Pop(c)
	}
	return data
}

func pageError(c *gin.Context, status int, msg string) {
	c.HTML(status, "error.html", pageData(c, nil, gin.H{
		"Title":   http.StatusText(status),
		"Status":  status,
		"Message": msg,
		"Path":    c.Request.URL.Path,
	}))
}

// homeHandler redirects to the home url of the site profile, or shows the
// root page listing the site's modules.
// GET /
func homeHandler(flashes *generic.Flashes) gin.HandlerFunc {
	return func(c *gin.Context) {
		profile := middleware.SiteProfile(c)
		if url, ok := profile.HomeRedirect(); ok {
			c.Redirect(http.StatusFound, url)
			return
		}
		if profile == nil {
			slog.Debug("no site profile, showing default home page", "tenant_id", middleware.TenantID(c))
		}
		c.HTML(http.StatusOK, "home.html", pageData(c, flashes, gin.H{"Title": "Home"}))
	}
}

// modulesHandler lists the known modules, module_page_size per page.
// GET /modules/?page=2
func modulesHandler(modules *repositories.ModuleRepository, rt *config.Runtime, flashes *generic.Flashes) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		listing := rt.Listing()

		count, err := modules.CountModules(ctx)
		if err != nil {
			slog.Error("failed to count modules", "error", err)
			pageError(c, http.StatusInternalServerError, "Failed to list modules")
			return
		}
		page := pagination.Paginate(count, listing.ModulePageSize, listing.Orphans, c.Query("page"))

		mods, err := modules.SelectModules(ctx, page.Limit, page.Offset)
		if err != nil {
			slog.Error("failed to list modules", "error", err)
			pageError(c, http.StatusInternalServerError, "Failed to list modules")
			return
		}

		c.HTML(http.StatusOK, "modules.html", pageData(c, flashes, gin.H{
			"Title":   "Modules",
			"Modules": mods,
			"Page":    page,
		}))
	}
}
