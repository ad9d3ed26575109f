// Package admin exposes the administrative surface: CRUD on the route
// table and read/clear on recent history.
package admin

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/avhookgw/internal/history"
	"github.com/vyrodovalexey/avhookgw/internal/observability"
	"github.com/vyrodovalexey/avhookgw/internal/routes"
)

// API holds the admin endpoint handlers.
type API struct {
	routes *routes.Store
	ledger *history.Ledger
	logger observability.Logger
}

// NewAPI creates the admin API.
func NewAPI(store *routes.Store, ledger *history.Ledger, logger observability.Logger) *API {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &API{
		routes: store,
		ledger: ledger,
		logger: logger,
	}
}

// Register mounts the admin endpoints on the given router group.
func (a *API) Register(rg *gin.RouterGroup) {
	rg.GET("/routes", a.listRoutes)
	rg.PUT("/routes/:key", a.upsertRoute)
	rg.DELETE("/routes/:key", a.deleteRoute)
	rg.GET("/history/:key", a.queryHistory)
	rg.DELETE("/history/:key", a.clearHistory)
}

// upsertRequest is the PUT /routes/:key request body.
type upsertRequest struct {
	URL string `json:"url" binding:"required"`
}

// listRoutes returns the full key to destination mapping.
func (a *API) listRoutes(c *gin.Context) {
	c.JSON(http.StatusOK, a.routes.List())
}

// upsertRoute creates or overwrites a route.
func (a *API) upsertRoute(c *gin.Context) {
	key := c.Param("key")

	var req upsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "body must be a JSON object with a url field",
		})
		return
	}

	if err := a.routes.Upsert(key, req.URL); err != nil {
		switch {
		case errors.Is(err, routes.ErrInvalidKey), errors.Is(err, routes.ErrEmptyDestination):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_request",
				"message": err.Error(),
			})
		default:
			// Persistence failed; the in-memory table was rolled back.
			a.logger.Error("route upsert failed",
				observability.String("key", key),
				observability.Error(err),
			)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "persistence_failed",
				"message": "route could not be saved",
			})
		}
		return
	}

	a.logger.Info("route upserted",
		observability.String("key", key),
		observability.String("url", req.URL),
	)

	c.JSON(http.StatusOK, gin.H{"key": key, "url": req.URL})
}

// deleteRoute removes a route.
func (a *API) deleteRoute(c *gin.Context) {
	key := c.Param("key")

	if err := a.routes.Delete(key); err != nil {
		if errors.Is(err, routes.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "no route for key",
			})
			return
		}
		a.logger.Error("route delete failed",
			observability.String("key", key),
			observability.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "persistence_failed",
			"message": "route could not be deleted",
		})
		return
	}

	a.logger.Info("route deleted", observability.String("key", key))

	c.Status(http.StatusNoContent)
}

// queryHistory returns recent history for a key, newest first.
func (a *API) queryHistory(c *gin.Context) {
	key := c.Param("key")

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_request",
				"message": "limit must be a non-negative integer",
			})
			return
		}
		limit = parsed
	}

	entries, err := a.ledger.Query(c.Request.Context(), key, limit)
	if err != nil {
		a.logger.Error("history query failed",
			observability.String("key", key),
			observability.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "query_failed",
			"message": "history could not be read",
		})
		return
	}

	if entries == nil {
		entries = []*history.Entry{}
	}

	c.JSON(http.StatusOK, gin.H{
		"key":     key,
		"count":   len(entries),
		"entries": entries,
	})
}

// clearHistory empties the recent history view for a key. The durable
// log is untouched.
func (a *API) clearHistory(c *gin.Context) {
	key := c.Param("key")

	if err := a.ledger.Clear(c.Request.Context(), key); err != nil {
		a.logger.Error("history clear failed",
			observability.String("key", key),
			observability.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "clear_failed",
			"message": "history could not be cleared",
		})
		return
	}

	a.logger.Info("history cleared", observability.String("key", key))

	c.Status(http.StatusNoContent)
}
