package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/integrationos/gateway/internal/openapi"
)

func (g *GatewayRoutes) handleOpenAPIJSON(c echo.Context) error {
	doc, err := g.deps.OpenAPI.JSON()
	if err != nil {
		return g.openAPIUnavailable(c, err)
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, doc)
}

func (g *GatewayRoutes) handleOpenAPIYAML(c echo.Context) error {
	doc, err := g.deps.OpenAPI.YAML()
	if err != nil {
		return g.openAPIUnavailable(c, err)
	}
	return c.Blob(http.StatusOK, "application/yaml", doc)
}

func (g *GatewayRoutes) openAPIUnavailable(c echo.Context, err error) error {
	if errors.Is(err, openapi.ErrNotReady) {
		c.Response().Header().Set("Retry-After", "5")
		return writeError(c, http.StatusServiceUnavailable, "openapi document is generating")
	}
	g.log.Error("openapi_unavailable", "error", err)
	return writeError(c, http.StatusInternalServerError, "openapi document unavailable")
}
