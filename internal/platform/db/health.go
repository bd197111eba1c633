package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// pingTimeout bounds the readiness probe so a stalled database turns
// into a fast 503 instead of a hanging health check.
const pingTimeout = 5 * time.Second

// PoolStats is a snapshot of the connection pool, reported on the
// readiness endpoint. EmptyAcquires and CanceledAcquires are the early
// saturation signals: they climb when requests wait for a connection.
type PoolStats struct {
	TotalConns       int32  `json:"total_conns"`
	IdleConns        int32  `json:"idle_conns"`
	AcquiredConns    int32  `json:"acquired_conns"`
	MaxConns         int32  `json:"max_conns"`
	AcquireCount     int64  `json:"acquire_count"`
	EmptyAcquires    int64  `json:"empty_acquires"`
	CanceledAcquires int64  `json:"canceled_acquires"`
	AcquireDuration  string `json:"acquire_duration"`
}

// Saturated reports whether every pooled connection is in use. A
// saturated pool still serves traffic, but new queries queue behind it.
func (s PoolStats) Saturated() bool {
	return s.MaxConns > 0 && s.AcquiredConns >= s.MaxConns
}

// Snapshot reads the current pool counters.
func Snapshot(pool *pgxpool.Pool) PoolStats {
	stat := pool.Stat()
	return PoolStats{
		TotalConns:       stat.TotalConns(),
		IdleConns:        stat.IdleConns(),
		AcquiredConns:    stat.AcquiredConns(),
		MaxConns:         stat.MaxConns(),
		AcquireCount:     stat.AcquireCount(),
		EmptyAcquires:    stat.EmptyAcquireCount(),
		CanceledAcquires: stat.CanceledAcquireCount(),
		AcquireDuration:  stat.AcquireDuration().String(),
	}
}

// Readiness describes the outcome of one readiness probe.
type Readiness struct {
	Status string    `json:"status"`
	Error  string    `json:"error,omitempty"`
	Pool   PoolStats `json:"pool"`
}

// readiness folds a ping result and pool snapshot into the probe
// response. Saturation degrades the status string but not the HTTP
// code: the pool recovers on its own, and flapping the load balancer
// would only make the queue worse.
func readiness(pingErr error, stats PoolStats) (int, Readiness) {
	if pingErr != nil {
		return http.StatusServiceUnavailable, Readiness{
			Status: "not_ready",
			Error:  pingErr.Error(),
			Pool:   stats,
		}
	}
	if stats.Saturated() {
		return http.StatusOK, Readiness{Status: "degraded", Pool: stats}
	}
	return http.StatusOK, Readiness{Status: "ready", Pool: stats}
}

// HealthHandler serves the database readiness probe.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), pingTimeout)
		defer cancel()

		code, body := readiness(pool.Ping(ctx), Snapshot(pool))
		return c.JSON(code, body)
	}
}
