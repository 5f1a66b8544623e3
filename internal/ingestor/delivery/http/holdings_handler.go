package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"golang-market-ingestor/internal/ingestor/dto"
	"golang-market-ingestor/internal/ingestor/service"
	"golang-market-ingestor/pkg/logger"
)

// HoldingsHandler handles HTTP requests for portfolio holdings.
type HoldingsHandler struct {
	portfolio service.PortfolioService
	logger    *logger.Logger
}

// NewHoldingsHandler creates a new HoldingsHandler.
func NewHoldingsHandler(portfolio service.PortfolioService, logger *logger.Logger) *HoldingsHandler {
	return &HoldingsHandler{portfolio: portfolio, logger: logger}
}

// RegisterRoutes registers the holdings routes to the Echo group.
func (h *HoldingsHandler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.ListHoldings)
	g.GET("/:symbol", h.GetHolding)
	g.PUT("/:symbol", h.UpsertHolding)
	g.DELETE("/:symbol", h.DeleteHolding)
}

// UpsertHolding creates or replaces the position for a symbol.
func (h *HoldingsHandler) UpsertHolding(c echo.Context) error {
	var req dto.UpsertHoldingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request payload"})
	}

	resp, err := h.portfolio.UpsertHolding(c.Request().Context(), c.Param("symbol"), &req)
	if err != nil {
		if service.IsValidation(err) {
			return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		}
		h.logger.Error("failed to upsert holding", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, resp)
}

// GetHolding returns the position for a symbol.
func (h *HoldingsHandler) GetHolding(c echo.Context) error {
	resp, err := h.portfolio.GetHolding(c.Request().Context(), c.Param("symbol"))
	if err != nil {
		if service.IsValidation(err) {
			return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		}
		h.logger.Error("failed to get holding", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
	}
	if resp == nil {
		return c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "holding not found"})
	}
	return c.JSON(http.StatusOK, resp)
}

// ListHoldings returns every position.
func (h *HoldingsHandler) ListHoldings(c echo.Context) error {
	resp, err := h.portfolio.ListHoldings(c.Request().Context())
	if err != nil {
		h.logger.Error("failed to list holdings", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, resp)
}

// DeleteHolding removes the position for a symbol.
func (h *HoldingsHandler) DeleteHolding(c echo.Context) error {
	if err := h.portfolio.DeleteHolding(c.Request().Context(), c.Param("symbol")); err != nil {
		if service.IsValidation(err) {
			return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		}
		h.logger.Error("failed to delete holding", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}
