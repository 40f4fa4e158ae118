package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"service-availability-backend/config"
	"service-availability-backend/internal/logging"
	"service-availability-backend/internal/mw"
	"service-availability-backend/internal/session"
	"service-availability-backend/internal/store"
)

// Deps is everything the router needs.
type Deps struct {
	Sessions *session.Service
	Services ServiceReader
	Journal  store.Store
	Options  session.Options
	Server   config.ServerConfig
	Logger   *zap.Logger
}

// NewRouter creates and configures a new Gin router.
func NewRouter(d Deps) *gin.Engine {
	logger := logging.OrNop(d.Logger).Named("api")

	r := gin.New()
	r.Use(mw.Recovery(logger), mw.RequestLogger(logger))
	if d.Server.RequestIPHeader != "" {
		r.TrustedPlatform = d.Server.RequestIPHeader
	}
	if len(d.Server.CORSOrigins) > 0 {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowOrigins = d.Server.CORSOrigins
		corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
		corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
		r.Use(cors.New(corsCfg))
	}

	// A zero TTL turns response caching off.
	var cacheStore *cache.Cache
	var caching gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if ttl := time.Duration(d.Server.CacheTTLSeconds) * time.Second; ttl > 0 {
		cacheStore = cache.New(ttl, 2*ttl)
		caching = mw.Cache(cacheStore, ttl)
	}

	handler := NewHandler(d.Sessions, d.Services, d.Journal, d.Options, cacheStore, logger)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.Use(mw.RateLimiter(rate.Limit(d.Server.RateLimitPerSec), d.Server.RateLimitBurst))
	{
		api.POST("/sessions", handler.StartSession)

		s := api.Group("/sessions/:id")
		s.GET("", handler.GetSession)
		s.DELETE("", handler.DiscardSession)
		s.PUT("/date", handler.SelectDate)
		s.PUT("/details", handler.SetDetails)
		s.POST("/dates/:date/slots", handler.AddSlot)
		s.PATCH("/dates/:date/slots/:slot_id", handler.UpdateSlot)
		s.DELETE("/dates/:date/slots/:slot_id", handler.RemoveSlot)
		s.POST("/images", handler.AttachImage)
		s.DELETE("/images/:index", handler.DetachImage)
		s.POST("/save", handler.SaveSession)

		api.GET("/services/:id/availability", caching, handler.GetAvailability)
		api.GET("/services/:id/saves", handler.ListSaves)
	}

	return r
}
