package server

import (
	"net/http"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"securenight/backend/snd/pkg/httpx"
)

// handleSystemStats reports host CPU, memory, disk and uptime for the
// dashboard header. Partial collector failures degrade to zero values
// instead of failing the request.
func (s *Server) handleSystemStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]any{}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		stats["cpu_percent"] = percents[0]
	} else {
		stats["cpu_percent"] = 0.0
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		stats["memory"] = map[string]any{
			"total":   vm.Total,
			"used":    vm.Used,
			"percent": vm.UsedPercent,
		}
	}

	if du, err := disk.Usage(s.cfg.DataDir); err == nil {
		stats["disk"] = map[string]any{
			"path":    du.Path,
			"total":   du.Total,
			"used":    du.Used,
			"percent": du.UsedPercent,
		}
	}

	if uptime, err := host.Uptime(); err == nil {
		stats["uptime_seconds"] = uptime
	}

	httpx.WriteJSON(w, http.StatusOK, stats)
}
