package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"service-availability-backend/internal/avail"
	"service-availability-backend/internal/mw"
	"service-availability-backend/internal/session"
)

type startSessionRequest struct {
	ServiceID string `json:"service_id"`
}

// StartSession opens a create session, or an edit session when service_id is given.
func (h *Handler) StartSession(c *gin.Context) {
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.ServiceID == "" {
		view, err := h.sessions.StartCreate(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, view)
		return
	}

	view, err := h.sessions.StartEdit(c.Request.Context(), req.ServiceID)
	if err != nil {
		writeRemoteError(c, "Load failed", err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// GetSession renders a session.
func (h *Handler) GetSession(c *gin.Context) {
	view, err := h.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// DiscardSession drops a session without saving.
func (h *Handler) DiscardSession(c *gin.Context) {
	if err := h.sessions.Discard(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type selectDateRequest struct {
	Date string `json:"date" binding:"required"`
}

// SelectDate moves the calendar selection.
func (h *Handler) SelectDate(c *gin.Context) {
	var req selectDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	date, err := avail.ParseDate(req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date"})
		return
	}

	view, err := h.sessions.SelectDate(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type detailsRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Type        string `json:"type"`
}

// SetDetails replaces the listing fields. They are only validated on save.
func (h *Handler) SetDetails(c *gin.Context) {
	var req detailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.sessions.SetDetails(c.Request.Context(), c.Param("id"), session.Details{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Type:        req.Type,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// slotResponse is a freshly added slot.
type slotResponse struct {
	ID    string      `json:"id"`
	Date  avail.Date  `json:"date"`
	Start avail.Clock `json:"start"`
	End   avail.Clock `json:"end"`
}

// AddSlot adds a default slot on the date in the path.
func (h *Handler) AddSlot(c *gin.Context) {
	date, ok := dateParam(c)
	if !ok {
		return
	}

	slot, view, err := h.sessions.AddSlot(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"slot": slotResponse{
			ID:    slot.ID,
			Date:  slot.Date,
			Start: avail.ClockOf(slot.Start),
			End:   avail.ClockOf(slot.End),
		},
		"session": view,
	})
}

type updateSlotRequest struct {
	Field string `json:"field" binding:"required"`
	Value string `json:"value" binding:"required"`
}

// UpdateSlot edits the start or end of a slot.
func (h *Handler) UpdateSlot(c *gin.Context) {
	date, ok := dateParam(c)
	if !ok {
		return
	}
	var req updateSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	field, err := avail.ParseField(req.Field)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	value, err := avail.ParseClock(req.Value)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid time"})
		return
	}

	view, err := h.sessions.UpdateSlot(c.Request.Context(), c.Param("id"), date, c.Param("slot_id"), field, value)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// RemoveSlot deletes a slot.
func (h *Handler) RemoveSlot(c *gin.Context) {
	date, ok := dateParam(c)
	if !ok {
		return
	}

	view, err := h.sessions.RemoveSlot(c.Request.Context(), c.Param("id"), date, c.Param("slot_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// AttachImage accepts a multipart "image" file.
func (h *Handler) AttachImage(c *gin.Context) {
	fh, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	view, err := h.sessions.AttachImage(c.Request.Context(), c.Param("id"), fh.Filename, f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// DetachImage drops the image at the index in the path.
func (h *Handler) DetachImage(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid image index"})
		return
	}

	view, err := h.sessions.DetachImage(c.Request.Context(), c.Param("id"), index)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// SaveSession submits the session to the marketplace.
func (h *Handler) SaveSession(c *gin.Context) {
	result, err := h.sessions.Save(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeRemoteError(c, "Save failed", err)
		return
	}

	if h.cache != nil {
		n := mw.Invalidate(h.cache, "/api/services/"+result.ServiceID+"/")
		h.logger.Debug("invalidated cached responses", zap.String("service_id", result.ServiceID), zap.Int("entries", n))
	}
	c.JSON(http.StatusOK, result)
}

func dateParam(c *gin.Context) (avail.Date, bool) {
	date, err := avail.ParseDate(c.Param("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date"})
		return avail.Date{}, false
	}
	return date, true
}
