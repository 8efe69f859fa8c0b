package handlers

import (
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemInfo is the health of the host the dashboard runs on.
type SystemInfo struct {
	Hostname      string  `json:"hostname"`
	OS            string  `json:"os"`
	Uptime        string  `json:"uptime"`
	CPUPercent    float64 `json:"cpuPercent"`
	CPUCores      int     `json:"cpuCores"`
	MemoryUsed    uint64  `json:"memoryUsed"`
	MemoryTotal   uint64  `json:"memoryTotal"`
	MemoryPercent float64 `json:"memoryPercent"`
	DiskUsed      uint64  `json:"diskUsed"`
	DiskTotal     uint64  `json:"diskTotal"`
	DiskPercent   float64 `json:"diskPercent"`
	Goroutines    int     `json:"goroutines"`
}

// SystemHandler reports host metrics.
type SystemHandler struct {
	diskPath string
	started  time.Time
}

// NewSystemHandler creates a SystemHandler reporting disk usage for diskPath.
func NewSystemHandler(diskPath string) *SystemHandler {
	return &SystemHandler{diskPath: diskPath, started: time.Now()}
}

// Get collects a host snapshot. Individual probe failures leave zero values.
func (h *SystemHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	info := SystemInfo{
		CPUCores:   runtime.NumCPU(),
		Goroutines: runtime.NumGoroutine(),
	}

	if hi, err := host.InfoWithContext(ctx); err == nil {
		info.Hostname = hi.Hostname
		info.OS = hi.Platform + " " + hi.PlatformVersion
		info.Uptime = strings.TrimSpace(humanize.RelTime(time.Now().Add(-time.Duration(hi.Uptime)*time.Second), time.Now(), "", ""))
	} else {
		log.Warn().Err(err).Msg("Failed to read host info")
	}

	if percent, err := cpu.PercentWithContext(ctx, 200*time.Millisecond, false); err == nil && len(percent) > 0 {
		info.CPUPercent = percent[0]
	}

	if vmem, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.MemoryUsed = vmem.Used
		info.MemoryTotal = vmem.Total
		info.MemoryPercent = vmem.UsedPercent
	}

	if usage, err := disk.UsageWithContext(ctx, h.diskPath); err == nil {
		info.DiskUsed = usage.Used
		info.DiskTotal = usage.Total
		info.DiskPercent = usage.UsedPercent
	}

	respondJSON(w, http.StatusOK, info)
}

// Health reports liveness.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": humanize.Time(h.started),
	})
}
