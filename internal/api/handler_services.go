package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"service-availability-backend/internal/avail"
	"service-availability-backend/internal/store"
)

// GetAvailability handles GET /api/services/{id}/availability?shape=flat|iso. It
// re-encodes whatever document the marketplace holds into the requested shape.
func (h *Handler) GetAvailability(c *gin.Context) {
	shape, err := avail.ParseShape(c.DefaultQuery("shape", string(avail.ShapeFlat)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	svc, err := h.services.GetService(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeRemoteError(c, "Load failed", err)
		return
	}

	slots := avail.NewSlotStore()
	skipped := 0
	if source, raw, ok := svc.Availability(h.opts.PayloadKeys); ok {
		decoded, stats, err := avail.Decode(source, raw)
		if err != nil {
			writeRemoteError(c, "Load failed", err)
			return
		}
		slots, skipped = decoded, stats.Skipped
	}

	payload, err := avail.Encode(slots, shape, h.opts.Validator)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"service_id":   string(svc.ID),
		"shape":        shape,
		"availability": payload,
		"skipped":      skipped,
	})
}

// ListSaves handles GET /api/services/{id}/saves?limit=N.
func (h *Handler) ListSaves(c *gin.Context) {
	limit := store.DefaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = n
	}

	records, err := h.journal.ListSaves(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve saves"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"saves": records})
}
