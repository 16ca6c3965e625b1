package handlers

import (
	"context"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

// HealthHandler serves the liveness and system status endpoint.
type HealthHandler struct {
	version     string
	startTime   time.Time
	footageRoot string
	library     LibraryService
}

// NewHealthHandler creates a health handler. library may be nil when
// running without an index.
func NewHealthHandler(version, footageRoot string, library LibraryService) *HealthHandler {
	return &HealthHandler{
		version:     version,
		startTime:   time.Now(),
		footageRoot: footageRoot,
		library:     library,
	}
}

// MemoryStatus reports host memory usage.
type MemoryStatus struct {
	TotalMB     uint64  `json:"total_mb"`
	UsedMB      uint64  `json:"used_mb"`
	UsedPercent float64 `json:"used_percent"`
}

// DiskStatus reports free space on the footage volume.
type DiskStatus struct {
	Path        string  `json:"path"`
	FreeGB      float64 `json:"free_gb"`
	UsedPercent float64 `json:"used_percent"`
}

// LibraryStatus reports index freshness.
type LibraryStatus struct {
	Collections int        `json:"collections"`
	RefreshedAt *time.Time `json:"refreshed_at,omitempty"`
}

// HealthResponse is the health endpoint body.
type HealthResponse struct {
	Status        string         `json:"status"`
	Version       string         `json:"version"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	CPUCores      int            `json:"cpu_cores"`
	Load1Min      float64        `json:"load_1min,omitempty"`
	Memory        *MemoryStatus  `json:"memory,omitempty"`
	Footage       *DiskStatus    `json:"footage,omitempty"`
	Library       *LibraryStatus `json:"library,omitempty"`
}

// HealthOutput is the health endpoint output.
type HealthOutput struct {
	Body HealthResponse
}

// Register registers the health route with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns service status with host and footage volume metrics",
		Tags:        []string{"System"},
	}, h.GetHealth)
}

// GetHealth reports service and host status. Metric collection failures
// degrade to omitted fields, never to an error response.
func (h *HealthHandler) GetHealth(_ context.Context, _ *struct{}) (*HealthOutput, error) {
	resp := HealthResponse{
		Status:        "healthy",
		Version:       h.version,
		UptimeSeconds: time.Since(h.startTime).Seconds(),
		CPUCores:      runtime.NumCPU(),
	}

	if avg, err := load.Avg(); err == nil && avg != nil {
		resp.Load1Min = avg.Load1
	}
	if vm, err := mem.VirtualMemory(); err == nil && vm != nil {
		resp.Memory = &MemoryStatus{
			TotalMB:     vm.Total / (1 << 20),
			UsedMB:      vm.Used / (1 << 20),
			UsedPercent: vm.UsedPercent,
		}
	}
	if h.footageRoot != "" {
		if du, err := disk.Usage(h.footageRoot); err == nil && du != nil {
			resp.Footage = &DiskStatus{
				Path:        h.footageRoot,
				FreeGB:      float64(du.Free) / (1 << 30),
				UsedPercent: du.UsedPercent,
			}
		}
	}
	if h.library != nil {
		ls := &LibraryStatus{Collections: len(h.library.Collections())}
		if t := h.library.RefreshedAt(); !t.IsZero() {
			ls.RefreshedAt = &t
		}
		resp.Library = ls
	}

	return &HealthOutput{Body: resp}, nil
}
