package api

import (
	"context"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"service-availability-backend/internal/logging"
	"service-availability-backend/internal/remote"
	"service-availability-backend/internal/session"
	"service-availability-backend/internal/store"
)

// ServiceReader loads listings from the marketplace.
type ServiceReader interface {
	GetService(ctx context.Context, id string) (*remote.Service, error)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	sessions *session.Service
	services ServiceReader
	journal  store.Store
	opts     session.Options
	cache    *cache.Cache
	logger   *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(sessions *session.Service, services ServiceReader, journal store.Store, opts session.Options, c *cache.Cache, logger *zap.Logger) *Handler {
	if len(opts.PayloadKeys) == 0 {
		opts.PayloadKeys = session.DefaultPayloadKeys
	}
	return &Handler{
		sessions: sessions,
		services: services,
		journal:  journal,
		opts:     opts,
		cache:    c,
		logger:   logging.OrNop(logger),
	}
}
