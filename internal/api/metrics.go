package api

import (
	"net/http"
	"runtime"
	"time"
)

const mib = 1 << 20

// SystemMetrics is the /metrics body.
type SystemMetrics struct {
	At       time.Time        `json:"at"`
	Version  string           `json:"version"`
	Uptime   float64          `json:"uptime_seconds"`
	Runtime  RuntimeMetrics   `json:"runtime"`
	Live     LiveMetrics      `json:"websocket"`
	MQTT     MQTTMetrics      `json:"mqtt"`
	Player   PlayerMetrics    `json:"player"`
	Database *DatabaseMetrics `json:"database,omitempty"`
}

type RuntimeMetrics struct {
	Goroutines int     `json:"goroutines"`
	HeapMiB    float64 `json:"heap_mib"`
	TotalMiB   float64 `json:"total_alloc_mib"`
	GCCycles   uint32  `json:"gc_cycles"`
}

type LiveMetrics struct {
	Sessions int `json:"sessions"`
}

// MQTTMetrics reports Enabled false when the broker is not configured.
type MQTTMetrics struct {
	Enabled   bool `json:"enabled"`
	Connected bool `json:"connected"`
}

// PlayerMetrics counts slots by program state alongside the library size.
type PlayerMetrics struct {
	Programs int            `json:"programs"`
	ByState  map[string]int `json:"by_state"`
	Shows    int            `json:"shows"`
}

type DatabaseMetrics struct {
	Open      int   `json:"open"`
	InUse     int   `json:"in_use"`
	Idle      int   `json:"idle"`
	WaitCount int64 `json:"wait_count"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	programs := s.controller.Programs()
	byState := make(map[string]int)
	for _, p := range programs {
		byState[p.State]++
	}

	m := SystemMetrics{
		At:      time.Now().UTC(),
		Version: s.version,
		Uptime:  time.Since(s.started).Seconds(),
		Runtime: RuntimeMetrics{
			Goroutines: runtime.NumGoroutine(),
			HeapMiB:    float64(mem.HeapAlloc) / mib,
			TotalMiB:   float64(mem.TotalAlloc) / mib,
			GCCycles:   mem.NumGC,
		},
		Live:   LiveMetrics{Sessions: s.hub.ClientCount()},
		Player: PlayerMetrics{Programs: len(programs), ByState: byState, Shows: s.library.GetShowCount()},
	}
	if s.mqtt != nil {
		m.MQTT = MQTTMetrics{Enabled: true, Connected: s.mqtt.IsConnected()}
	}
	if s.db != nil {
		st := s.db.Stats()
		m.Database = &DatabaseMetrics{Open: st.OpenConnections, InUse: st.InUse, Idle: st.Idle, WaitCount: st.WaitCount}
	}

	writeJSON(w, http.StatusOK, m)
}
