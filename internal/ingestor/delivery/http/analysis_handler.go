package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"golang-market-ingestor/internal/ingestor/dto"
	"golang-market-ingestor/internal/ingestor/service"
	"golang-market-ingestor/pkg/logger"
)

// AnalysisHandler serves the current analysis results.
type AnalysisHandler struct {
	portfolio service.PortfolioService
	logger    *logger.Logger
}

// NewAnalysisHandler creates a new AnalysisHandler.
func NewAnalysisHandler(portfolio service.PortfolioService, logger *logger.Logger) *AnalysisHandler {
	return &AnalysisHandler{portfolio: portfolio, logger: logger}
}

// RegisterRoutes registers the analysis routes to the Echo group.
func (h *AnalysisHandler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.ListAnalysis)
	g.GET("/:symbol", h.ListAnalysisBySymbol)
}

// ListAnalysis returns the current analysis rows for every symbol.
func (h *AnalysisHandler) ListAnalysis(c echo.Context) error {
	return h.respond(c, "")
}

// ListAnalysisBySymbol returns the current analysis rows for one symbol.
func (h *AnalysisHandler) ListAnalysisBySymbol(c echo.Context) error {
	return h.respond(c, c.Param("symbol"))
}

func (h *AnalysisHandler) respond(c echo.Context, symbol string) error {
	resp, err := h.portfolio.ListAnalysis(c.Request().Context(), symbol)
	if err != nil {
		if service.IsValidation(err) {
			return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		}
		h.logger.Error("failed to list analysis results", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, resp)
}

// HealthHandler serves the liveness endpoint.
type HealthHandler struct{}

// RegisterRoutes registers the health route on the Echo instance.
func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}
