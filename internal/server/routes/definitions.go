package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/integrationos/gateway/internal/app/services"
)

func (g *GatewayRoutes) handleConnectionDefinitions(c echo.Context) error {
	page, err := g.deps.Access.ConnectionDefinitions(c.Request().Context(), queryMap(c))
	return g.writeListing(c, page, err)
}

func (g *GatewayRoutes) handleOAuthDefinitions(c echo.Context) error {
	page, err := g.deps.Access.OAuthDefinitions(c.Request().Context(), queryMap(c))
	return g.writeListing(c, page, err)
}

func (g *GatewayRoutes) handleModelDefinitions(c echo.Context) error {
	page, err := g.deps.Access.ModelDefinitions(c.Request().Context(), queryMap(c))
	return g.writeListing(c, page, err)
}

func (g *GatewayRoutes) writeListing(c echo.Context, page any, err error) error {
	if errors.Is(err, services.ErrInvalidListQuery) {
		return writeError(c, http.StatusBadRequest, err.Error())
	}
	if err != nil {
		g.log.Error("definition_listing_failed", "route", c.Path(), "error", err)
		return writeError(c, http.StatusInternalServerError, "listing failed")
	}
	return c.JSON(http.StatusOK, page)
}
