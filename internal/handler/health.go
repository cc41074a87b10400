package handler

import (
	"context"
	"net/http"
	"time"

	"foodtruck/internal/infra"
	"foodtruck/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Health returns a JSON health check response.
// Checks DB and Redis connectivity and reports breaker states and dead
// letter backlog; never exposes credentials or internals.
// An open breaker degrades the report but does not fail the check.
func Health(db *gorm.DB, rdb *redis.Client, breakers ...*infra.CircuitBreaker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		dbStatus := "connected"
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			dbStatus = "error"
		}

		redisStatus := "connected"
		dlq := gin.H{}
		if rdb.Ping(ctx).Err() != nil {
			redisStatus = "error"
		} else {
			for _, q := range []string{worker.QueueBoletas, worker.QueueEmail} {
				if n, err := worker.DeadLetterDepth(ctx, rdb, q); err == nil {
					dlq[q] = n
				}
			}
		}

		cbs := gin.H{}
		for _, cb := range breakers {
			cbs[cb.Name()] = cb.State().String()
		}

		status := http.StatusOK
		if dbStatus != "connected" || redisStatus != "connected" {
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"ok":       status == http.StatusOK,
			"db":       dbStatus,
			"redis":    redisStatus,
			"breakers": cbs,
			"dlq":      dlq,
		})
	}
}
