package handler

import (
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/directfanz/interact-service/internal/hub"
	"github.com/directfanz/interact-service/pkg/middleware"
	"github.com/directfanz/interact-service/pkg/response"
)

// HTTPHandler serves the read-only REST surface over the in-memory hub
// state. Counts reflect this instance only.
type HTTPHandler struct {
	hub            *hub.Hub
	authMiddleware *middleware.AuthMiddleware
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(h *hub.Hub, authMiddleware *middleware.AuthMiddleware) *HTTPHandler {
	return &HTTPHandler{
		hub:            h,
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes registers all routes. Stream stats stay behind auth so
// viewer counts of subscriber-only streams do not leak.
func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		streams := api.Group("/streams", h.authMiddleware.RequireAuth())
		{
			streams.GET("", h.ListStreams)
			streams.GET("/:id/stats", h.GetStreamStats)
		}
	}
}

// ListStreams lists streams with at least one connected viewer.
func (h *HTTPHandler) ListStreams(c *gin.Context) {
	streams := h.hub.ActiveStreams()
	sort.Slice(streams, func(i, j int) bool {
		return streams[i].StreamID < streams[j].StreamID
	})

	response.Success(c, gin.H{
		"streams": streams,
		"total":   len(streams),
	})
}

// GetStreamStats retrieves live counts for one stream.
func (h *HTTPHandler) GetStreamStats(c *gin.Context) {
	streamID := c.Param("id")

	stats, ok := h.hub.StreamStats(streamID)
	if !ok {
		response.NotFound(c, "stream not found")
		return
	}

	response.Success(c, stats)
}
