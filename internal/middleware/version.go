package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
)

// APIVersion describes one published API version.
type APIVersion struct {
	Version    string     `json:"version"`
	Status     string     `json:"status"` // "active", "deprecated"
	SunsetDate *time.Time `json:"sunset_date,omitempty"`
}

type VersionMiddleware struct {
	supportedVersions map[string]APIVersion
	buildVersion      string
}

func NewVersionMiddleware(buildVersion string) *VersionMiddleware {
	return &VersionMiddleware{
		supportedVersions: map[string]APIVersion{
			"v1": {Version: "v1", Status: "active"},
		},
		buildVersion: buildVersion,
	}
}

// VersionHeader stamps responses with the API and build versions, and with
// deprecation headers for deprecated versions.
func (vm *VersionMiddleware) VersionHeader(version string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-API-Version", version)
			if vm.buildVersion != "" {
				h.Set("X-Build-Version", vm.buildVersion)
			}
			if ver, ok := vm.supportedVersions[version]; ok && ver.Status == "deprecated" {
				h.Set("X-API-Deprecated", "true")
				if ver.SunsetDate != nil {
					h.Set("X-API-Sunset", ver.SunsetDate.Format(time.RFC3339))
				}
			}
			return next(c)
		}
	}
}

// VersionRoute creates the route group for version.
func (vm *VersionMiddleware) VersionRoute(e *echo.Echo, version string) *echo.Group {
	return e.Group("/"+version, vm.VersionHeader(version))
}

func (vm *VersionMiddleware) SupportedVersions() map[string]APIVersion {
	return vm.supportedVersions
}
