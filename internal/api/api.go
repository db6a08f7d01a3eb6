// Package api is the HTTP front end for job submission and operator
// inspection.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// Broker is the slice of the broker server the API needs.
type Broker interface {
	Submit(ctx context.Context, job any) (string, error)
	StatusString(ctx context.Context) string
}

// NewRouter builds the gin engine. Jobs are submitted as arbitrary JSON
// objects; a top-level "scheduled_at" (unix seconds) defers execution.
func NewRouter(b Broker, rdb *redis.Client) *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", func(c *gin.Context) {
		if err := rdb.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "redis unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/jobs", func(c *gin.Context) {
		var job map[string]any
		if err := c.ShouldBindJSON(&job); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		id, err := b.Submit(c.Request.Context(), job)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"id": id, "status": "accepted"})
	})

	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": b.StatusString(c.Request.Context())})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
