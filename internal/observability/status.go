package observability

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/BuggedPlayer/ableton-mcpv2/internal/pending"
)

// StatusSource is what the bridge exposes to the status surface.
type StatusSource interface {
	ConnState() string
	Pending() []pending.Request
}

// StatusServer serves the ambient observability endpoints for the
// controller: health, readiness, connection status, and metrics.
type StatusServer struct {
	engine   *gin.Engine
	appeared time.Time
}

func NewStatusServer(logger zerolog.Logger, corsOrigins []string, source StatusSource) *StatusServer {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestLogger(logger))
	if len(corsOrigins) > 0 {
		cfg := cors.DefaultConfig()
		cfg.AllowOrigins = corsOrigins
		engine.Use(cors.New(cfg))
	}

	s := &StatusServer{engine: engine, appeared: time.Now()}

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"uptime":    time.Since(s.appeared).String(),
			"component": "mcpv2-bridge",
		})
	})

	engine.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ready":  source.ConnState() == "connected",
			"uptime": time.Since(s.appeared).String(),
		})
	})

	engine.GET("/status", func(c *gin.Context) {
		reqs := source.Pending()
		c.JSON(http.StatusOK, gin.H{
			"connection": source.ConnState(),
			"pending":    len(reqs),
			"requests":   reqs,
		})
	})

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return s
}

// Run blocks serving the status API on addr.
func (s *StatusServer) Run(addr string) error {
	return s.engine.Run(addr)
}
