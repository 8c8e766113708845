// Package stats reports host resource usage for the server info surface.
package stats

import (
	"context"
	"reflect"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/runbox/runbox/model/types"
)

const Name = "system/stats"

// Service reports system resource statistics.
type Service struct {
	workDir string
	started time.Time
}

// New creates a stats service; disk usage is reported for the volume holding
// workDir.
func New(workDir string) *Service {
	return &Service{workDir: workDir, started: time.Now()}
}

func (s *Service) Name() string {
	return Name
}

func (s *Service) Methods() types.Signatures {
	return []types.Signature{
		{
			Name:        "snapshot",
			Description: "Reports CPU, memory and workspace disk usage",
			Input:       reflect.TypeOf(&SnapshotInput{}),
			Output:      reflect.TypeOf(&SnapshotOutput{}),
		},
	}
}

func (s *Service) Method(name string) (types.Executable, error) {
	switch strings.ToLower(name) {
	case "snapshot":
		return s.snapshot, nil
	default:
		return nil, types.NewMethodNotFoundError(name)
	}
}

func (s *Service) snapshot(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*SnapshotInput)
	if !ok {
		return types.NewInvalidInputError(in)
	}
	output, ok := out.(*SnapshotOutput)
	if !ok {
		return types.NewInvalidOutputError(out)
	}
	return s.Snapshot(ctx, input, output)
}

// SnapshotInput defines parameters for a stats snapshot
type SnapshotInput struct{}

// SnapshotOutput carries one resource usage snapshot. Probe failures leave
// the corresponding section zeroed rather than failing the snapshot.
type SnapshotOutput struct {
	Hostname      string  `json:"hostname,omitempty" description:"Host name"`
	OS            string  `json:"os" description:"Operating system"`
	Arch          string  `json:"arch" description:"CPU architecture"`
	NumCPU        int     `json:"numCpu" description:"Logical CPU count"`
	CPUPercent    float64 `json:"cpuPercent" description:"Aggregate CPU utilisation"`
	MemoryTotal   uint64  `json:"memoryTotal" description:"Total memory in bytes"`
	MemoryUsed    uint64  `json:"memoryUsed" description:"Used memory in bytes"`
	MemoryPercent float64 `json:"memoryPercent" description:"Memory utilisation"`
	DiskTotal     uint64  `json:"diskTotal" description:"Workspace volume size in bytes"`
	DiskUsed      uint64  `json:"diskUsed" description:"Workspace volume usage in bytes"`
	DiskPercent   float64 `json:"diskPercent" description:"Workspace volume utilisation"`
	UptimeSec     float64 `json:"uptimeSec" description:"Server process uptime in seconds"`
}

// Snapshot fills output with current usage figures.
func (s *Service) Snapshot(ctx context.Context, _ *SnapshotInput, output *SnapshotOutput) error {
	output.OS = runtime.GOOS
	output.Arch = runtime.GOARCH
	output.NumCPU = runtime.NumCPU()
	output.UptimeSec = time.Since(s.started).Seconds()

	if info, err := host.InfoWithContext(ctx); err == nil {
		output.Hostname = info.Hostname
	}
	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		output.CPUPercent = percents[0]
	}
	if memory, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		output.MemoryTotal = memory.Total
		output.MemoryUsed = memory.Used
		output.MemoryPercent = memory.UsedPercent
	}
	if usage, err := disk.UsageWithContext(ctx, s.workDir); err == nil {
		output.DiskTotal = usage.Total
		output.DiskUsed = usage.Used
		output.DiskPercent = usage.UsedPercent
	}
	return nil
}
