// Package mediainfo builds media descriptors for the decision engine by
// probing files with FFprobe.
package mediainfo

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	perrors "github.com/mantonx/viewra-playback/internal/modules/playbackmodule/errors"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/types"
)

// DefaultProbeTimeout bounds a single ffprobe invocation.
const DefaultProbeTimeout = 30 * time.Second

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name with args.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Analyzer probes media files.
type Analyzer struct {
	logger      hclog.Logger
	runner      CommandRunner
	ffprobePath string
	timeout     time.Duration
}

// NewAnalyzer creates an analyzer. An empty ffprobePath is looked up on PATH.
func NewAnalyzer(logger hclog.Logger, ffprobePath string, runner CommandRunner) *Analyzer {
	if ffprobePath == "" {
		ffprobePath, _ = exec.LookPath("ffprobe")
		if ffprobePath == "" {
			ffprobePath = "ffprobe"
		}
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Analyzer{
		logger:      logger.Named("mediainfo"),
		runner:      runner,
		ffprobePath: ffprobePath,
		timeout:     DefaultProbeTimeout,
	}
}

// SetTimeout changes the probe timeout.
func (a *Analyzer) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		a.timeout = timeout
	}
}

// Analyze probes path and describes its container and streams.
func (a *Analyzer) Analyze(ctx context.Context, path string) (*types.MediaDescriptor, error) {
	if path == "" {
		return nil, perrors.ValidationError("analyze_media", fmt.Errorf("%w: empty path", perrors.ErrInvalidInput))
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	output, err := a.runner.Run(ctx, a.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return nil, perrors.SourceError("analyze_media", fmt.Errorf("ffprobe failed: %w", err)).
			WithDetail("path", path)
	}

	media, err := ParseProbeOutput(path, output)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("media analyzed",
		"path", path,
		"container", media.Container,
		"type", media.MediaType(),
		"streams", len(media.Streams),
		"elapsed", time.Since(start))
	return media, nil
}

type probeOutput struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeFormat struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	BitRate    string `json:"bit_rate"`
}

type probeStream struct {
	Index            int    `json:"index"`
	CodecType        string `json:"codec_type"`
	CodecName        string `json:"codec_name"`
	Width            int    `json:"width,omitempty"`
	Height           int    `json:"height,omitempty"`
	PixFmt           string `json:"pix_fmt,omitempty"`
	FieldOrder       string `json:"field_order,omitempty"`
	ColorTransfer    string `json:"color_transfer,omitempty"`
	ColorPrimaries   string `json:"color_primaries,omitempty"`
	BitsPerRawSample string `json:"bits_per_raw_sample,omitempty"`
	BitRate          string `json:"bit_rate,omitempty"`
	Channels         int    `json:"channels,omitempty"`
	Disposition      struct {
		AttachedPic int `json:"attached_pic"`
	} `json:"disposition"`
}

// ParseProbeOutput converts ffprobe JSON into a media descriptor.
func ParseProbeOutput(path string, data []byte) (*types.MediaDescriptor, error) {
	var probe probeOutput
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, perrors.SourceError("parse_probe", fmt.Errorf("failed to parse ffprobe output: %w", err)).
			WithDetail("path", path)
	}

	media := &types.MediaDescriptor{
		Path:      path,
		Container: containerFor(path, probe.Format.FormatName),
		Bitrate:   parseInt(probe.Format.BitRate),
	}

	for _, s := range probe.Streams {
		switch s.CodecType {
		case "video":
			// Embedded cover art is not a playable video stream
			if s.Disposition.AttachedPic == 1 {
				continue
			}
			depth := colorDepth(s)
			media.Streams = append(media.Streams, types.StreamDescriptor{
				Index:        s.Index,
				Type:         types.StreamTypeVideo,
				Codec:        types.NormalizeCodec(s.CodecName),
				Bitrate:      parseInt(s.BitRate),
				Width:        s.Width,
				Height:       s.Height,
				ColorDepth:   depth,
				IsHDR:        isHDR(s, depth),
				IsInterlaced: isInterlaced(s.FieldOrder),
			})
		case "audio":
			media.Streams = append(media.Streams, types.StreamDescriptor{
				Index:    s.Index,
				Type:     types.StreamTypeAudio,
				Codec:    types.NormalizeCodec(s.CodecName),
				Bitrate:  parseInt(s.BitRate),
				Channels: s.Channels,
			})
		case "subtitle":
			media.Streams = append(media.Streams, types.StreamDescriptor{
				Index: s.Index,
				Type:  types.StreamTypeSubtitle,
				Codec: s.CodecName,
			})
		}
	}

	if types.IsImageContainer(media.Container) && len(media.AudioStreams()) == 0 {
		media.Type = types.MediaTypePhoto
	}
	return media, nil
}

// containerFor prefers the file extension; ffprobe reports demuxer families
// such as "mov,mp4,m4a,3gp" whose first entry is often not the file's format.
func containerFor(path, formatName string) string {
	if ext := types.NormalizeContainer(filepath.Ext(path)); ext != "" {
		return ext
	}
	first, _, _ := strings.Cut(formatName, ",")
	return types.NormalizeContainer(first)
}

func colorDepth(s probeStream) int {
	if bits, err := strconv.Atoi(s.BitsPerRawSample); err == nil && bits > 0 {
		return bits
	}
	switch {
	case strings.Contains(s.PixFmt, "12le"), strings.Contains(s.PixFmt, "12be"):
		return 12
	case strings.Contains(s.PixFmt, "10le"), strings.Contains(s.PixFmt, "10be"), s.PixFmt == "p010le":
		return 10
	case s.PixFmt != "":
		return 8
	}
	return 0
}

func isHDR(s probeStream, depth int) bool {
	switch s.ColorTransfer {
	case "smpte2084", "arib-std-b67":
		return true
	}
	return s.ColorPrimaries == "bt2020" && depth >= 10
}

func isInterlaced(fieldOrder string) bool {
	switch fieldOrder {
	case "tt", "bb", "tb", "bt":
		return true
	}
	return false
}

func parseInt(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
