package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RegisterRoutes configures all API routes, middleware, and error handlers
func RegisterRoutes(e *echo.Echo, h *Handlers, cfg ServerConfig) {
	e.HTTPErrorHandler = NotFoundJSON()

	e.Use(SetJSONContentType)
	e.Use(SetNoCacheHeaders)

	if cfg.APIKey != "" {
		e.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:X-API-Key",
			Skipper: func(c echo.Context) bool {
				return c.Path() == "/v1/health"
			},
			Validator: func(key string, c echo.Context) (bool, error) {
				return key == cfg.APIKey, nil
			},
		}))
	}

	if cfg.QuoteRate <= 0 {
		cfg.QuoteRate = DefaultQuoteRate
	}
	if cfg.QuoteBurst <= 0 {
		cfg.QuoteBurst = DefaultQuoteBurst
	}
	// every route below except flags reads the ledger
	ledgerLimit := middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(cfg.QuoteRate),
		Burst:     cfg.QuoteBurst,
		ExpiresIn: 2 * time.Minute,
	}))

	v1 := e.Group("/v1")
	v1.GET("/health", h.Health)

	pools := v1.Group("/pools/:asset1/:asset2", ledgerLimit)
	pools.GET("", h.Pool)
	pools.GET("/quote/swap", h.QuoteSwap)
	pools.GET("/quote/add", h.QuoteAdd)
	pools.GET("/quote/remove", h.QuoteRemove)
	pools.POST("/halt", h.HaltPool)
	pools.DELETE("/halt", h.ResumePool)

	v1.GET("/halts", h.Halts)

	accounts := v1.Group("/accounts/:address", ledgerLimit)
	accounts.GET("/excess", h.Excess)
	accounts.GET("/optins/:asset1/:asset2", h.OptIns)

	flagGroup := v1.Group("/flags")
	flagGroup.GET("", h.FlagsList)
	flagGroup.POST("", h.FlagsUpsert)
	flagGroup.GET("/:key", h.FlagsGet)
	flagGroup.PUT("/:key", h.FlagsUpdate)
	flagGroup.DELETE("/:key", h.FlagsDelete)

	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: http.StatusNotFound})
	})
}
