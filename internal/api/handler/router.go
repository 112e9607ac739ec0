package handler

import (
	"net/http"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions configures the ambient middleware of the router.
type RouterOptions struct {
	AllowedOrigins []string
	// Gatherer serves /metrics when set.
	Gatherer prometheus.Gatherer
	// Sentry installs the sentry middleware; the SDK must be initialised.
	Sentry bool
}

// NewRouter builds the gin engine with every route.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if opts.Sentry {
		r.Use(sentrygin.New(sentrygin.Options{Repanic: true, Timeout: 2 * time.Second}))
	}
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     opts.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	r.GET("/api/departments", h.Departments)

	auth := h.Auth.RequireActor()
	api := r.Group("/api/complaints", auth)
	{
		api.POST("", h.Submit)
		api.GET("/my", h.ListMine)
		api.GET("/lawsuit-info", h.LawsuitInfo)
		api.GET("/admin", h.ListAdmin)
		api.GET("/authority", h.ListAuthority)
		api.GET("/:id", h.Get)
		api.PUT("/:id/consent", h.UpdateConsent)
		api.PUT("/:id/user-resolve", h.UserResolve)
		api.POST("/:id/escalate", h.Escalate)
		api.PUT("/:id/admin-action", h.AdminAction)
		api.PUT("/:id/request-data", h.RequestData)
		api.PUT("/:id/authority-action", h.AuthorityAction)
	}

	r.GET("/ws/status", auth, h.StatusStream)
	return r
}
