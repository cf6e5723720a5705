package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Quok-it/benchmarking/internal/db"
)

const healthProbeTimeout = 2 * time.Second

type RuntimeSnapshot struct {
	QueueDepth          int64
	SubmissionsReceived int64
	SubmissionsDropped  int64
	LastPassTime        *int64
	LastPassStatus      string
	LastPushTime        *int64
	LastPushStatus      string
}

type SnapshotProvider interface {
	Snapshot() RuntimeSnapshot
}

// StoreProbe is implemented by both store backends.
type StoreProbe interface {
	Ping(ctx context.Context) error
	TableCounts(ctx context.Context) (map[string]int64, error)
}

// FileStatter is implemented by the SQLite store only.
type FileStatter interface {
	Stats(ctx context.Context) db.HealthStats
}

type HealthResponse struct {
	Status              string   `json:"status"`
	UptimeSeconds       int64    `json:"uptime_seconds"`
	Version             string   `json:"version"`
	StoreBackend        string   `json:"store_backend"`
	DBStatus            string   `json:"db_status"`
	DBSizeBytes         int64    `json:"db_size_bytes"`
	WALSizeBytes        int64    `json:"wal_size_bytes"`
	DiskUsagePct        float64  `json:"disk_usage_pct"`
	ResultCount         int64    `json:"result_count"`
	AggregateCount      int64    `json:"aggregate_count"`
	QueueDepth          int64    `json:"queue_depth"`
	SubmissionsReceived int64    `json:"submissions_received"`
	SubmissionsDropped  int64    `json:"submissions_dropped"`
	LastPassTime        *int64   `json:"last_pass_time"`
	LastPassStatus      string   `json:"last_pass_status"`
	LastPushTime        *int64   `json:"last_push_time"`
	LastPushStatus      string   `json:"last_push_status"`
	GeneratedAt         string   `json:"generated_at"`
	Warnings            []string `json:"warnings,omitempty"`
}

type HealthHandler struct {
	store        StoreProbe
	backend      string
	startTime    time.Time
	version      string
	snapshotter  SnapshotProvider
	pushDisabled bool
}

func NewHealthHandler(store StoreProbe, backend string, start time.Time, version string, snapshotter SnapshotProvider, pushDisabled bool) *HealthHandler {
	return &HealthHandler{
		store:        store,
		backend:      backend,
		startTime:    start,
		version:      version,
		snapshotter:  snapshotter,
		pushDisabled: pushDisabled,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
	defer cancel()

	snapshot := h.snapshotter.Snapshot()
	resp := HealthResponse{
		Status:              "ok",
		UptimeSeconds:       int64(time.Since(h.startTime).Seconds()),
		Version:             h.version,
		StoreBackend:        h.backend,
		DBStatus:            "ok",
		QueueDepth:          snapshot.QueueDepth,
		SubmissionsReceived: snapshot.SubmissionsReceived,
		SubmissionsDropped:  snapshot.SubmissionsDropped,
		LastPassTime:        snapshot.LastPassTime,
		LastPassStatus:      snapshot.LastPassStatus,
		LastPushTime:        snapshot.LastPushTime,
		LastPushStatus:      snapshot.LastPushStatus,
		GeneratedAt:         time.Now().UTC().Format(time.RFC3339),
	}

	if fs, ok := h.store.(FileStatter); ok {
		stats := fs.Stats(ctx)
		resp.DBStatus = stats.DBStatus
		resp.DBSizeBytes = stats.DBSizeBytes
		resp.WALSizeBytes = stats.WALSize
		resp.DiskUsagePct = stats.DiskUsagePct
	} else if err := h.store.Ping(ctx); err != nil {
		resp.DBStatus = "error"
	}

	counts, err := h.store.TableCounts(ctx)
	if err != nil {
		resp.Status = "degraded"
		resp.Warnings = append(resp.Warnings, "table_counts_unavailable")
	} else {
		resp.ResultCount = counts["raw_benchmark_results"]
		resp.AggregateCount = counts["gpu_aggregates"]
	}

	if h.pushDisabled && resp.LastPushStatus == "" {
		resp.LastPushStatus = "disabled"
	}
	if resp.DBStatus != "ok" {
		resp.Status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
