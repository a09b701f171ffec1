package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/database"
	"github.com/kevinw99/DCA-Backtest-Tool-sub008/internal/scheduler"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

const version = "1.0.0"

// DatabaseStatus describes one SQLite database
type DatabaseStatus struct {
	Name          string  `json:"name"`
	Healthy       bool    `json:"healthy"`
	Error         string  `json:"error,omitempty"`
	SizeMB        float64 `json:"sizeMb"`
	WALSizeMB     float64 `json:"walSizeMb"`
	PageCount     int64   `json:"pageCount"`
	FreelistPages int64   `json:"freelistPages"`
}

// SystemStatusResponse is returned by GET /api/system/status
type SystemStatusResponse struct {
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptimeSeconds"`
	Goroutines    int              `json:"goroutines"`
	CPUPercent    float64          `json:"cpuPercent"`
	MemoryPercent float64          `json:"memoryPercent"`
	SweepWorkers  int              `json:"sweepWorkers"`
	Databases     []DatabaseStatus `json:"databases"`
}

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// handleHealth handles health check requests. ?deep=true adds an integrity
// check of every database.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	deep := r.URL.Query().Get("deep") == "true"
	timeout := 2 * time.Second
	if deep {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	status := http.StatusOK
	databases := map[string]string{}
	for _, db := range s.databases() {
		check := db.QuickCheck
		if deep {
			check = db.HealthCheck
		}
		if err := check(ctx); err != nil {
			databases[db.Name()] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		databases[db.Name()] = "ok"
	}

	response := map[string]interface{}{
		"status":    "healthy",
		"version":   version,
		"service":   "dca-backtest",
		"databases": databases,
	}
	if status != http.StatusOK {
		response["status"] = "degraded"
	}

	s.writeJSON(w, status, envelope{Success: status == http.StatusOK, Data: response})
}

// handleSystemStatus reports process, host and database statistics
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	resp := SystemStatusResponse{
		Version:       version,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
		SweepWorkers:  s.container.SweepRunner.Workers(),
	}

	if percents, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(percents) > 0 {
		resp.CPUPercent = percents[0]
	} else if err != nil {
		s.log.Debug().Err(err).Msg("Failed to read CPU usage")
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		resp.MemoryPercent = vm.UsedPercent
	} else {
		s.log.Debug().Err(err).Msg("Failed to read memory usage")
	}

	for _, db := range s.databases() {
		st := DatabaseStatus{Name: db.Name(), Healthy: true}
		stats, err := db.GetStats()
		if err != nil {
			st.Healthy = false
			st.Error = err.Error()
		} else {
			st.SizeMB = float64(stats.SizeBytes) / 1024 / 1024
			st.WALSizeMB = float64(stats.WALSizeBytes) / 1024 / 1024
			st.PageCount = stats.PageCount
			st.FreelistPages = stats.FreelistCount
		}
		resp.Databases = append(resp.Databases, st)
	}

	s.writeJSON(w, http.StatusOK, envelope{Success: true, Data: resp})
}

// handleRunJob triggers a maintenance job outside its schedule
func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "job")

	var job scheduler.Job
	if s.jobs != nil {
		switch name {
		case "cleanup":
			job = s.jobs.Cleanup
		case "wal-checkpoint":
			job = s.jobs.WALCheckpoint
		case "backup":
			job = s.jobs.Backup
		}
	}
	if job == nil {
		s.writeJSON(w, http.StatusNotFound, envelope{Error: "unknown job: " + name})
		return
	}

	start := time.Now()
	if err := s.container.Scheduler.RunNow(job); err != nil {
		s.log.Error().Err(err).Str("job", job.Name()).Msg("Manual job run failed")
		s.writeJSON(w, http.StatusInternalServerError, envelope{Error: err.Error()})
		return
	}

	s.writeJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]interface{}{
		"job":        job.Name(),
		"durationMs": time.Since(start).Milliseconds(),
	}})
}

func (s *Server) databases() []*database.DB {
	var dbs []*database.DB
	for _, db := range []*database.DB{s.container.MarketDB, s.container.ResultsDB} {
		if db != nil {
			dbs = append(dbs, db)
		}
	}
	return dbs
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
