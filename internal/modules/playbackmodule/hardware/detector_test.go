package hardware

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"

	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/types"
)

type fakeRunner struct {
	outputs map[string]string
	calls   int
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.calls++
	out, ok := f.outputs[name]
	if !ok {
		return nil, errors.New("executable not found")
	}
	return []byte(out), nil
}

func newTestDetector(runner *fakeRunner, renderNode bool, goos string) *Detector {
	d := NewDetector(hclog.NewNullLogger(), "ffmpeg", runner)
	d.goos = goos
	d.statFn = func(string) error {
		if renderNode {
			return nil
		}
		return os.ErrNotExist
	}
	return d
}

const encoderListing = ` V....D h264_nvenc           NVIDIA NVENC H.264 encoder
 V....D hevc_nvenc           NVIDIA NVENC hevc encoder
 V....D h264_vaapi           H.264/AVC (VAAPI)
 V....D libx264              libx264 H.264 / AVC
`

func TestDetector_Detect(t *testing.T) {
	tests := []struct {
		name       string
		outputs    map[string]string
		renderNode bool
		goos       string
		accel      string
		device     string
	}{
		{
			name:    "nvidia preferred",
			outputs: map[string]string{"ffmpeg": encoderListing, "nvidia-smi": "NVIDIA GeForce RTX 3060"},
			accel:   types.HardwareAccelNVENC,
		},
		{
			name:       "vaapi when no nvidia",
			outputs:    map[string]string{"ffmpeg": encoderListing},
			renderNode: true,
			accel:      types.HardwareAccelVAAPI,
			device:     DefaultRenderDevice,
		},
		{
			name:    "nvidia-smi without nvenc encoders",
			outputs: map[string]string{"ffmpeg": " V....D libx264 libx264\n", "nvidia-smi": "GPU"},
			accel:   types.HardwareAccelNone,
		},
		{
			name:    "videotoolbox on darwin",
			outputs: map[string]string{"ffmpeg": " V....D h264_videotoolbox VideoToolbox H.264 Encoder\n"},
			goos:    "darwin",
			accel:   types.HardwareAccelVideoToolbox,
		},
		{
			name:  "no ffmpeg",
			accel: types.HardwareAccelNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDetector(&fakeRunner{outputs: tt.outputs}, tt.renderNode, tt.goos)
			info := d.Detect(context.Background())
			assert.Equal(t, tt.accel, info.Accel)
			assert.Equal(t, tt.accel != types.HardwareAccelNone, info.Available)
			assert.Equal(t, tt.device, info.Device)
		})
	}
}

func TestDetector_Caches(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{"ffmpeg": encoderListing}}
	d := newTestDetector(runner, true, "linux")

	first := d.Detect(context.Background())
	calls := runner.calls
	assert.Same(t, first, d.Detect(context.Background()))
	assert.Equal(t, calls, runner.calls)

	d.Invalidate()
	d.Detect(context.Background())
	assert.Greater(t, runner.calls, calls)
}

func TestDetector_ResolvePolicy(t *testing.T) {
	d := newTestDetector(&fakeRunner{outputs: map[string]string{"ffmpeg": encoderListing}}, true, "linux")

	policy := types.DefaultEncodingPolicy()
	policy.HardwareAccelerationType = types.HardwareAccelAuto
	policy.VaapiDevice = ""

	resolved := d.ResolvePolicy(context.Background(), policy)
	assert.Equal(t, types.HardwareAccelVAAPI, resolved.HardwareAccelerationType)
	assert.Equal(t, DefaultRenderDevice, resolved.VaapiDevice)
	assert.Equal(t, types.HardwareAccelAuto, policy.HardwareAccelerationType, "input is not modified")

	// Explicit accelerators pass through untouched
	policy.HardwareAccelerationType = types.HardwareAccelQSV
	assert.Equal(t, types.HardwareAccelQSV, d.ResolvePolicy(context.Background(), policy).HardwareAccelerationType)

	// Absurd thread counts are bounded by the machine
	policy.EncodingThreadCount = 1 << 20
	resolved = d.ResolvePolicy(context.Background(), policy)
	assert.Less(t, resolved.EncodingThreadCount, 1<<20)
	assert.Greater(t, resolved.EncodingThreadCount, 0)

	policy.EncodingThreadCount = -1
	assert.Equal(t, -1, d.ResolvePolicy(context.Background(), policy).EncodingThreadCount)
}

func TestDetector_Host(t *testing.T) {
	d := newTestDetector(&fakeRunner{}, false, "linux")
	info := d.Host(context.Background())
	assert.Greater(t, info.LogicalCPUs, 0)
}
