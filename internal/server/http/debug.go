package http

import (
	"net/http"
	"net/http/pprof"
	"runtime"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// DebugHandler provides debug and profiling endpoints.
type DebugHandler struct {
	pprofEnabled bool
	startTime    time.Time
}

// NewDebugHandler creates a new debug handler.
func NewDebugHandler(pprofEnabled bool) *DebugHandler {
	return &DebugHandler{
		pprofEnabled: pprofEnabled,
		startTime:    time.Now(),
	}
}

// Register registers debug endpoints on router.
func (h *DebugHandler) Register(router *mux.Router) {
	router.HandleFunc("/debug/runtime", h.handleRuntimeInfo).Methods(http.MethodGet)

	if h.pprofEnabled {
		router.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		router.HandleFunc("/debug/pprof/profile", pprof.Profile)
		router.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		router.HandleFunc("/debug/pprof/trace", pprof.Trace)
		// Named profiles (heap, goroutine, block, mutex) are served by Index.
		router.PathPrefix("/debug/pprof/").HandlerFunc(pprof.Index)
	}

	log.Info().Bool("pprof", h.pprofEnabled).Msg("debug endpoints registered at /debug/")
}

// handleRuntimeInfo returns Go runtime information as JSON.
func (h *DebugHandler) handleRuntimeInfo(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	info := map[string]interface{}{
		"go_version":     runtime.Version(),
		"go_os":          runtime.GOOS,
		"go_arch":        runtime.GOARCH,
		"num_cpu":        runtime.NumCPU(),
		"num_goroutine":  runtime.NumGoroutine(),
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
		"memory": map[string]interface{}{
			"alloc_mb":          float64(memStats.Alloc) / 1024 / 1024,
			"sys_mb":            float64(memStats.Sys) / 1024 / 1024,
			"heap_alloc_mb":     float64(memStats.HeapAlloc) / 1024 / 1024,
			"heap_objects":      memStats.HeapObjects,
			"num_gc":            memStats.NumGC,
			"gc_pause_total_ms": float64(memStats.PauseTotalNs) / 1e6,
		},
	}

	writeJSON(w, http.StatusOK, info)
}
