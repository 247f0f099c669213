package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pollroom/internal/middleware"
	"pollroom/pkg/interfaces"
	"pollroom/pkg/response"
)

// Upgrader is the slice of the websocket transport the router mounts: it
// promotes a plain HTTP request into a live connection.
type Upgrader interface {
	Serve(w http.ResponseWriter, r *http.Request)
}

// ConnectionCounter reports how many websocket connections are live.
type ConnectionCounter interface {
	Count() int
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
// Everything under /api is a read-only snapshot; all mutation flows through
// the websocket gateway mounted at /ws.
func NewRouter(session interfaces.SessionReader, gateway Upgrader, conns ConnectionCounter) *gin.Engine {
	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())

	startedAt := time.Now()

	r.GET("/ws", func(c *gin.Context) {
		gateway.Serve(c.Writer, c.Request)
	})

	r.GET("/healthz", func(c *gin.Context) {
		stats := session.Stats()
		response.Success(c, http.StatusOK, gin.H{
			"status":       "ok",
			"uptime":       time.Since(startedAt).Round(time.Second).String(),
			"connections":  conns.Count(),
			"teachers":     stats.Teachers,
			"participants": stats.Participants,
		})
	})

	api := r.Group("/api")
	{
		api.GET("/participants", func(c *gin.Context) {
			response.Success(c, http.StatusOK, session.Roster())
		})

		api.GET("/poll", func(c *gin.Context) {
			poll := session.ActivePoll()
			if poll == nil {
				response.NotFound(c, "no poll is currently active")
				return
			}
			response.Success(c, http.StatusOK, poll)
		})

		api.GET("/history", func(c *gin.Context) {
			response.Success(c, http.StatusOK, session.HistorySnapshot())
		})

		api.GET("/stats", func(c *gin.Context) {
			response.Success(c, http.StatusOK, gin.H{
				"connections": conns.Count(),
				"session":     session.Stats(),
			})
		})
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.NoRoute(middleware.NotFoundHandler)

	return r
}
