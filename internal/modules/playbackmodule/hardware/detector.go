// Package hardware detects hardware encoders and host capacity, and resolves
// the "auto" parts of an encoding policy against them.
package hardware

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/types"
)

// DefaultRenderDevice is the DRM render node probed for VAAPI.
const DefaultRenderDevice = "/dev/dri/renderD128"

const (
	detectCacheTTL = 5 * time.Minute
	probeTimeout   = 2 * time.Second
)

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Info describes the detected acceleration.
type Info struct {
	Available bool                `json:"available"`
	Accel     string              `json:"accel"`
	Device    string              `json:"device,omitempty"`
	Encoders  map[string][]string `json:"encoders,omitempty"`
}

// HostInfo summarizes the machine for health reporting.
type HostInfo struct {
	Hostname      string  `json:"hostname"`
	OS            string  `json:"os"`
	Platform      string  `json:"platform"`
	LogicalCPUs   int     `json:"logical_cpus"`
	PhysicalCPUs  int     `json:"physical_cpus"`
	MemoryTotalMB uint64  `json:"memory_total_mb"`
	MemoryUsedPct float64 `json:"memory_used_percent"`
	UptimeSeconds uint64  `json:"uptime_seconds"`
}

// Detector probes for hardware encoders. Results are cached.
type Detector struct {
	logger       hclog.Logger
	runner       CommandRunner
	ffmpegPath   string
	renderDevice string
	goos         string
	statFn       func(string) error

	mu         sync.Mutex
	info       *Info
	lastDetect time.Time
}

// NewDetector creates a detector. A nil runner executes real commands.
func NewDetector(logger hclog.Logger, ffmpegPath string, runner CommandRunner) *Detector {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if runner == nil {
		runner = execRunner{}
	}
	return &Detector{
		logger:       logger.Named("hardware"),
		runner:       runner,
		ffmpegPath:   ffmpegPath,
		renderDevice: DefaultRenderDevice,
		goos:         runtime.GOOS,
		statFn: func(path string) error {
			_, err := os.Stat(path)
			return err
		},
	}
}

// Detect returns the available acceleration, probing at most once per cache window.
func (d *Detector) Detect(ctx context.Context) *Info {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.info != nil && time.Since(d.lastDetect) < detectCacheTTL {
		return d.info
	}

	d.logger.Info("detecting hardware acceleration capabilities")

	info := &Info{
		Accel:    types.HardwareAccelNone,
		Encoders: make(map[string][]string),
	}
	encoders := d.encoderList(ctx)

	add := func(accel, suffix string) {
		found := false
		for _, codec := range []string{types.CodecH264, types.CodecHEVC, types.CodecAV1} {
			name := codec + "_" + suffix
			if strings.Contains(encoders, name) {
				info.Encoders[codec] = append(info.Encoders[codec], name)
				found = true
			}
		}
		if found && !info.Available {
			info.Available = true
			info.Accel = accel
		}
	}

	if d.hasNVIDIA(ctx) {
		add(types.HardwareAccelNVENC, "nvenc")
	}
	if d.statFn(d.renderDevice) == nil {
		before := info.Available
		add(types.HardwareAccelVAAPI, "vaapi")
		if info.Available && !before {
			info.Device = d.renderDevice
		}
		add(types.HardwareAccelQSV, "qsv")
	}
	if d.goos == "darwin" {
		add(types.HardwareAccelVideoToolbox, "videotoolbox")
	}

	if info.Available {
		d.logger.Info("hardware acceleration detected", "accel", info.Accel, "encoders", info.Encoders)
	} else {
		d.logger.Info("no hardware acceleration detected, using software encoding")
	}

	d.info = info
	d.lastDetect = time.Now()
	return info
}

// Invalidate drops the cached detection result.
func (d *Detector) Invalidate() {
	d.mu.Lock()
	d.info = nil
	d.mu.Unlock()
}

// ResolvePolicy returns a copy of policy with "auto" acceleration replaced by
// the detected accelerator and the thread count bounded by the host's CPUs.
func (d *Detector) ResolvePolicy(ctx context.Context, policy types.EncodingPolicy) types.EncodingPolicy {
	resolved := policy.Clone()

	if strings.EqualFold(resolved.HardwareAccelerationType, types.HardwareAccelAuto) {
		info := d.Detect(ctx)
		resolved.HardwareAccelerationType = info.Accel
		if info.Device != "" && resolved.VaapiDevice == "" {
			resolved.VaapiDevice = info.Device
		}
		d.logger.Debug("resolved automatic hardware acceleration", "accel", info.Accel)
	}

	if resolved.EncodingThreadCount > 0 {
		if logical, err := cpu.CountsWithContext(ctx, true); err == nil && logical > 0 && resolved.EncodingThreadCount > logical {
			d.logger.Debug("clamping encoding threads to host CPUs", "configured", resolved.EncodingThreadCount, "cpus", logical)
			resolved.EncodingThreadCount = logical
		}
	}
	return resolved
}

// Host reports machine facts. Fields gopsutil cannot read stay zero.
func (d *Detector) Host(ctx context.Context) HostInfo {
	var out HostInfo

	if h, err := host.InfoWithContext(ctx); err == nil {
		out.Hostname = h.Hostname
		out.OS = h.OS
		out.Platform = h.Platform
		out.UptimeSeconds = h.Uptime
	} else {
		d.logger.Debug("failed to read host info", "error", err)
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		out.LogicalCPUs = n
	}
	if n, err := cpu.CountsWithContext(ctx, false); err == nil {
		out.PhysicalCPUs = n
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		out.MemoryTotalMB = vm.Total / (1024 * 1024)
		out.MemoryUsedPct = vm.UsedPercent
	}
	return out
}

func (d *Detector) encoderList(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	output, err := d.runner.Run(ctx, d.ffmpegPath, "-hide_banner", "-encoders")
	if err != nil {
		d.logger.Debug("failed to list encoders", "error", err)
		return ""
	}
	return string(output)
}

func (d *Detector) hasNVIDIA(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	_, err := d.runner.Run(ctx, "nvidia-smi", "--query-gpu=name", "--format=csv,noheader")
	return err == nil
}
