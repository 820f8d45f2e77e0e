package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RouterConfig carries the handlers and cross cutting settings of the API.
// Nil handlers leave their routes unregistered.
type RouterConfig struct {
	Auth     *AuthHandler
	Catalog  *CatalogHandler
	Bookings *BookingHandler
	Reports  *ReportHandler
	Admin    *AdminHandler

	Authenticator  Authenticator
	Logger         *slog.Logger
	RequestTimeout time.Duration
	// CORSOrigins lists allowed origins. Empty allows any origin without credentials.
	CORSOrigins []string
}

// NewRouter builds the gin engine serving the booking API.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := defaultLogger(cfg.Logger)
	auth := cfg.Authenticator
	if auth == nil && cfg.Auth != nil {
		auth = cfg.Auth.service
	}

	engine := gin.New()
	engine.Use(RequestLogger(logger), gin.Recovery())
	engine.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	engine.Use(RequestTimeout(cfg.RequestTimeout))

	responder := newResponder(logger)
	engine.NoRoute(func(c *gin.Context) {
		responder.writeJSON(c, http.StatusNotFound, errorResponse{ErrorCode: "NOT_FOUND", Message: "route not found"})
	})

	if cfg.Admin != nil {
		engine.GET("/healthz", cfg.Admin.Health)
	}

	api := engine.Group("/api/v1")
	if cfg.Auth != nil {
		api.POST("/auth/login", cfg.Auth.Login)
	}

	authed := api.Group("")
	authed.Use(RequireAuth(auth, logger))
	admin := authed.Group("")
	admin.Use(RequireAdmin(logger))

	if cfg.Auth != nil {
		admin.POST("/users", cfg.Auth.CreateUser)
	}
	if cfg.Catalog != nil {
		authed.GET("/offices", cfg.Catalog.ListOffices)
		authed.GET("/offices/:office/floors", cfg.Catalog.ListFloors)
		authed.GET("/offices/:office/floors/:floor/sectors", cfg.Catalog.ListSectors)
		authed.GET("/offices/:office/floors/:floor/desks", cfg.Catalog.ListDesks)
		authed.GET("/slots", cfg.Catalog.Slots)
		admin.POST("/desks", cfg.Catalog.RegisterDesk)
	}
	if cfg.Bookings != nil {
		authed.POST("/bookings", cfg.Bookings.Create)
		authed.GET("/bookings", cfg.Bookings.List)
		authed.GET("/bookings/current", cfg.Bookings.Current)
		authed.GET("/bookings/:id", cfg.Bookings.Get)
		authed.POST("/bookings/:id/check-in", cfg.Bookings.CheckIn)
		authed.POST("/bookings/:id/cancel", cfg.Bookings.Cancel)
	}
	if cfg.Reports != nil {
		admin.GET("/reports/most-booked-desk", cfg.Reports.MostBookedDesk)
		admin.GET("/reports/most-frequent-user", cfg.Reports.MostFrequentUser)
	}
	if cfg.Admin != nil {
		admin.POST("/admin/sweep", cfg.Admin.Sweep)
	}

	return engine
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Length", "Content-Type", "Authorization", RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
