package server

import (
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/forecastbench/forecastbench/internal/scheduler"
)

// SystemHandlers serves host stats and the job trigger endpoints.
type SystemHandlers struct {
	log     zerolog.Logger
	dataDir string
	runner  *scheduler.Runner
	started time.Time
}

// SystemStatusResponse is the /api/system/status payload.
type SystemStatusResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsedMB  float64 `json:"memory_used_mb"`
	DataDirSizeMB float64 `json:"data_dir_size_mb"`
	Goroutines    int     `json:"goroutines"`
}

// NewSystemHandlers creates the system status handlers.
func NewSystemHandlers(log zerolog.Logger, dataDir string, runner *scheduler.Runner) *SystemHandlers {
	return &SystemHandlers{
		log:     log.With().Str("component", "system_handlers").Logger(),
		dataDir: dataDir,
		runner:  runner,
		started: time.Now().UTC(),
	}
}

// HandleSystemStatus handles GET /api/system/status.
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	resp := SystemStatusResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(h.started).Seconds(),
		Goroutines:    runtime.NumGoroutine(),
		DataDirSizeMB: h.dirSizeMB(h.dataDir),
	}

	// Instantaneous sample; the dashboard polls, so no interval wait here
	if percentages, err := cpu.Percent(0, false); err == nil && len(percentages) > 0 {
		resp.CPUPercent = percentages[0]
	} else if err != nil {
		h.log.Warn().Err(err).Msg("Failed to sample CPU usage")
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		resp.MemoryPercent = vm.UsedPercent
		resp.MemoryUsedMB = float64(vm.Used) / 1024 / 1024
	} else {
		h.log.Warn().Err(err).Msg("Failed to read memory stats")
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleJobsStatus handles GET /api/system/jobs.
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs": h.runner.Statuses(),
	})
}

// HandleTriggerJob handles POST /api/system/jobs/{name}. The run happens
// in the background; progress arrives on the event stream.
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.runner.Trigger(r.Context(), name); err != nil {
		writeError(w, http.StatusConflict, h.log, err)
		return
	}
	h.log.Info().Str("job", name).Msg("Job triggered manually")
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "triggered",
		"job":    name,
	})
}

// dirSizeMB walks a directory tree and sums file sizes.
func (h *SystemHandlers) dirSizeMB(dir string) float64 {
	var total int64
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // unreadable entries just don't count
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		h.log.Warn().Err(err).Str("dir", dir).Msg("Failed to size data directory")
	}
	return float64(total) / 1024 / 1024
}
