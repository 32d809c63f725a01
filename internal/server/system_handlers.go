package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/beam/internal/database"
	"github.com/aristath/beam/internal/domain"
	"github.com/aristath/beam/internal/scheduler"
)

// PortfolioInfo exposes the loaded composition
type PortfolioInfo interface {
	Holdings() []domain.Holding
	TargetCurrency() string
}

// JobRunner runs a job outside its schedule
type JobRunner interface {
	RunNow(job scheduler.Job) error
}

// SystemStatusResponse represents system status
type SystemStatusResponse struct {
	Status         string   `json:"status"`
	Version        string   `json:"version"`
	Uptime         string   `json:"uptime"`
	UptimeSeconds  int64    `json:"uptime_seconds"`
	CPUPercent     float64  `json:"cpu_percent"`
	RAMPercent     float64  `json:"ram_percent"`
	Goroutines     int      `json:"goroutines"`
	Holdings       int      `json:"holdings"`
	TargetCurrency string   `json:"target_currency"`
	Databases      []DBInfo `json:"databases"`
}

// DBInfo describes one database file
type DBInfo struct {
	Name      string  `json:"name"`
	Path      string  `json:"path"`
	SizeMB    float64 `json:"size_mb"`
	WALSizeMB float64 `json:"wal_size_mb"`
	PageCount int64   `json:"page_count"`
	Healthy   bool    `json:"healthy"`
	Error     string  `json:"error,omitempty"`
}

// JobInfo describes a registered job and its last manual run
type JobInfo struct {
	Name     string `json:"name"`
	Running  bool   `json:"running"`
	LastRun  string `json:"last_run,omitempty"`
	Duration string `json:"duration,omitempty"`
	Status   string `json:"status,omitempty"`
	Error    string `json:"error,omitempty"`
}

type jobRun struct {
	running  bool
	lastRun  time.Time
	duration time.Duration
	err      error
}

// SystemHandlers serves process, database and job status
type SystemHandlers struct {
	log       zerolog.Logger
	databases map[string]*database.DB
	portfolio PortfolioInfo
	runner    JobRunner
	jobs      map[string]scheduler.Job
	startedAt time.Time
	now       func() time.Time

	cpuPercent func() (float64, error)
	ramPercent func() (float64, error)

	mu   sync.Mutex
	runs map[string]*jobRun
}

// NewSystemHandlers creates system handlers. jobs may be nil.
func NewSystemHandlers(
	log zerolog.Logger,
	databases map[string]*database.DB,
	portfolio PortfolioInfo,
	runner JobRunner,
	jobs map[string]scheduler.Job,
	startedAt time.Time,
) *SystemHandlers {
	if jobs == nil {
		jobs = map[string]scheduler.Job{}
	}
	return &SystemHandlers{
		log:        log.With().Str("handler", "system").Logger(),
		databases:  databases,
		portfolio:  portfolio,
		runner:     runner,
		jobs:       jobs,
		startedAt:  startedAt,
		now:        time.Now,
		cpuPercent: sampleCPU,
		ramPercent: sampleRAM,
		runs:       make(map[string]*jobRun),
	}
}

// sampleCPU averages CPU usage over a short window
func sampleCPU() (float64, error) {
	pct, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		return 0, err
	}
	if len(pct) == 0 {
		return 0, nil
	}
	return pct[0], nil
}

func sampleRAM() (float64, error) {
	v, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return v.UsedPercent, nil
}

// HandleSystemStatus returns process and portfolio status
// GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPct, err := h.cpuPercent()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
	}
	ramPct, err := h.ramPercent()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
	}

	dbs := h.databaseInfo(r.Context())
	status := "healthy"
	for _, db := range dbs {
		if !db.Healthy {
			status = "degraded"
		}
	}

	uptime := h.now().Sub(h.startedAt).Truncate(time.Second)
	response := SystemStatusResponse{
		Status:        status,
		Version:       Version,
		Uptime:        uptime.String(),
		UptimeSeconds: int64(uptime.Seconds()),
		CPUPercent:    cpuPct,
		RAMPercent:    ramPct,
		Goroutines:    runtime.NumGoroutine(),
		Databases:     dbs,
	}
	if h.portfolio != nil {
		response.Holdings = len(h.portfolio.Holdings())
		response.TargetCurrency = h.portfolio.TargetCurrency()
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleDatabaseStats returns size and health of every database
// GET /api/system/database/stats
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	dbs := h.databaseInfo(r.Context())
	total := 0.0
	for _, db := range dbs {
		total += db.SizeMB + db.WALSizeMB
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"databases":     dbs,
		"total_size_mb": total,
	})
}

func (h *SystemHandlers) databaseInfo(ctx context.Context) []DBInfo {
	names := make([]string, 0, len(h.databases))
	for name, db := range h.databases {
		if db != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out := make([]DBInfo, 0, len(names))
	for _, name := range names {
		db := h.databases[name]
		info := DBInfo{Name: name, Path: db.Path(), Healthy: true}

		if err := db.HealthCheck(ctx); err != nil {
			info.Healthy = false
			info.Error = err.Error()
		}
		if stats, err := db.GetStats(); err != nil {
			h.log.Warn().Err(err).Str("database", name).Msg("Failed to get database stats")
		} else {
			info.SizeMB = float64(stats.SizeBytes) / 1024 / 1024
			info.WALSizeMB = float64(stats.WALSizeBytes) / 1024 / 1024
			info.PageCount = stats.PageCount
		}
		out = append(out, info)
	}
	return out
}

// HandleJobsStatus lists the registered jobs
// GET /api/system/jobs
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.jobs))
	for name := range h.jobs {
		names = append(names, name)
	}
	sort.Strings(names)

	h.mu.Lock()
	jobs := make([]JobInfo, 0, len(names))
	for _, name := range names {
		info := JobInfo{Name: name}
		if run, ok := h.runs[name]; ok {
			info.Running = run.running
			if !run.lastRun.IsZero() {
				info.LastRun = run.lastRun.Format(time.RFC3339)
				info.Duration = run.duration.String()
				info.Status = "success"
				if run.err != nil {
					info.Status = "failed"
					info.Error = run.err.Error()
				}
			}
		}
		jobs = append(jobs, info)
	}
	h.mu.Unlock()

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_jobs": len(jobs),
		"jobs":       jobs,
	})
}

// HandleTriggerJob starts a registered job in the background
// POST /api/system/jobs/{name}
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	job, ok := h.jobs[name]
	if !ok || h.runner == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown job: " + name})
		return
	}

	h.mu.Lock()
	run, ok := h.runs[name]
	if !ok {
		run = &jobRun{}
		h.runs[name] = run
	}
	if run.running {
		h.mu.Unlock()
		h.writeJSON(w, http.StatusConflict, map[string]string{"error": "job already running: " + name})
		return
	}
	run.running = true
	h.mu.Unlock()

	h.log.Info().Str("job", name).Msg("Manual job run triggered")

	go func() {
		start := h.now()
		err := h.runner.RunNow(job)
		if err != nil {
			h.log.Error().Err(err).Str("job", name).Msg("Manual job run failed")
		}

		h.mu.Lock()
		run.running = false
		run.lastRun = start
		run.duration = h.now().Sub(start)
		run.err = err
		h.mu.Unlock()
	}()

	h.writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "accepted",
		"message": "Job " + name + " started",
	})
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
