// Command playback-decide prints the playback decision for one media item
// against one device profile.
//
//	playback-decide -profiles ./profiles -user-agent "Roku/DVP-12.0" movie.mkv
//	playback-decide -profile "Generic Device" -media descriptor.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-hclog"

	"github.com/mantonx/viewra-playback/internal/config"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/hardware"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/mediainfo"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/profiles"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/service"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/types"
)

// Exit codes
const (
	exitOK          = 0
	exitError       = 1
	exitUsage       = 2
	exitUnsupported = 3
)

type app struct {
	stdout io.Writer
	stderr io.Writer
	probe  mediainfo.CommandRunner
}

func main() {
	a := &app{stdout: os.Stdout, stderr: os.Stderr}
	os.Exit(a.run(context.Background(), os.Args[1:]))
}

func (a *app) run(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("playback-decide", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	configPath := fs.String("config", "", "configuration file supplying the encoding policy")
	profileDir := fs.String("profiles", "", "directory of device profile documents")
	profileName := fs.String("profile", "", "profile to decide against (overrides -user-agent)")
	userAgent := fs.String("user-agent", "", "device user agent used to resolve the profile")
	mediaJSON := fs.String("media", "", "media descriptor JSON file used instead of probing")
	detectHW := fs.Bool("detect-hw", false, "probe ffmpeg for hardware encoders")
	trace := fs.Bool("trace", false, "include the per-rule evaluation trace")
	verbose := fs.Bool("v", false, "debug logging")
	fs.Usage = func() {
		fmt.Fprintln(a.stderr, "usage: playback-decide [flags] [media-file]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	level := hclog.Warn
	if *verbose {
		level = hclog.Debug
	}
	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "playback-decide",
		Level:  level,
		Output: a.stderr,
	})

	req := service.DecideRequest{
		ProfileName: *profileName,
		Device:      profiles.DeviceIdentity{UserAgent: *userAgent},
	}
	switch {
	case *mediaJSON != "":
		media, err := readDescriptor(*mediaJSON)
		if err != nil {
			fmt.Fprintln(a.stderr, "error:", err)
			return exitError
		}
		req.Media = media
	case fs.NArg() == 1:
		req.MediaPath = fs.Arg(0)
	default:
		fs.Usage()
		return exitUsage
	}

	cm := config.NewConfigManager(logger.Named("config"))
	if err := cm.LoadConfig(*configPath); err != nil {
		fmt.Fprintln(a.stderr, "error:", err)
		return exitError
	}
	cfg := cm.GetConfig()

	registry := profiles.NewRegistry(logger, nil)
	if *profileDir != "" {
		list, err := profiles.LoadDir(logger, *profileDir)
		if err != nil {
			fmt.Fprintln(a.stderr, "error:", err)
			return exitError
		}
		if err := registry.Replace(list); err != nil {
			fmt.Fprintln(a.stderr, "error:", err)
			return exitError
		}
	}

	analyzer := mediainfo.NewAnalyzer(logger, cfg.Media.FFprobePath, a.probe)
	analyzer.SetTimeout(cfg.Media.ProbeTimeout)

	deps := service.Dependencies{
		Profiles: registry,
		Policy:   cm,
		Analyzer: analyzer,
	}
	if *detectHW {
		deps.Resolver = hardware.NewDetector(logger, cfg.Encoding.EncoderAppPath, nil)
	}

	resp, err := service.NewPlaybackService(logger, deps).Decide(ctx, req)
	if err != nil {
		fmt.Fprintln(a.stderr, "error:", err)
		return exitError
	}
	if !*trace {
		resp.Trace = nil
	}

	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		fmt.Fprintln(a.stderr, "error:", err)
		return exitError
	}

	if resp.Decision.Kind == types.DecisionUnsupported {
		return exitUnsupported
	}
	return exitOK
}

func readDescriptor(path string) (*types.MediaDescriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var media types.MediaDescriptor
	if err := json.NewDecoder(f).Decode(&media); err != nil {
		return nil, fmt.Errorf("invalid media descriptor %s: %w", path, err)
	}
	return &media, nil
}
