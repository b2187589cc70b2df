package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/nats-io/nats.go"
)

type HealthStatus struct {
	Healthy           bool     `json:"healthy"`
	PendingRecords    int      `json:"pending_records"`
	DatabaseConnected bool     `json:"database_connected"`
	NATSConnected     bool     `json:"nats_connected"`
	Errors            []string `json:"errors"`
}

// HealthChecker reports publisher-side health: store reachability, broker
// connectivity, and outbox lag against a pending-records threshold.
type HealthChecker struct {
	db           *sql.DB
	nc           *nats.Conn
	store        Store
	lagThreshold int
}

func NewHealthChecker(db *sql.DB, nc *nats.Conn, store Store, lagThreshold int) *HealthChecker {
	return &HealthChecker{
		db:           db,
		nc:           nc,
		store:        store,
		lagThreshold: lagThreshold,
	}
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Healthy: true,
		Errors:  []string{},
	}

	if err := h.db.PingContext(ctx); err != nil {
		status.Healthy = false
		status.Errors = append(status.Errors, fmt.Sprintf("database ping failed: %v", err))
	} else {
		status.DatabaseConnected = true
	}

	if h.nc != nil {
		status.NATSConnected = h.nc.IsConnected()
		if !status.NATSConnected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
	}

	if status.DatabaseConnected {
		pending, err := h.store.CountPending(ctx)
		if err != nil {
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("count pending failed: %v", err))
		} else {
			status.PendingRecords = pending
			if h.lagThreshold > 0 && pending > h.lagThreshold {
				status.Healthy = false
				status.Errors = append(status.Errors, fmt.Sprintf("outbox lag %d exceeds threshold %d", pending, h.lagThreshold))
			}
		}
	}

	return status
}

// Handler serves the health status as JSON, 503 when unhealthy.
func (h *HealthChecker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := h.Check(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if !status.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(status)
	}
}
