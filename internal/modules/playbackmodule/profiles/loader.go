package profiles

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/mantonx/viewra-playback/internal/hotreload"
	perrors "github.com/mantonx/viewra-playback/internal/modules/playbackmodule/errors"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/types"
)

// Extensions are the file types LoadDir reads.
var Extensions = []string{".yaml", ".yml", ".json"}

// LoadFile parses a single profile document.
func LoadFile(path string) (*types.CapabilityProfile, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, perrors.SourceError("load_profile", err).WithDetail("path", path)
	}
	defer f.Close()

	doc, err := ParseDocument(f)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	profile, warnings, err := doc.ToProfile()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return profile, warnings, nil
}

// LoadDir loads every profile document in dir, in file name order. Documents
// that fail to parse or validate are logged and skipped.
func LoadDir(logger hclog.Logger, dir string) ([]*types.CapabilityProfile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, perrors.SourceError("load_profiles", err).WithDetail("dir", dir)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !hasProfileExtension(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)

	profiles := make([]*types.CapabilityProfile, 0, len(files))
	seen := make(map[string]string)
	for _, path := range files {
		profile, warnings, err := LoadFile(path)
		if err != nil {
			logger.Warn("skipping invalid profile", "path", path, "error", err)
			continue
		}
		for _, w := range warnings {
			logger.Warn("profile warning", "profile", profile.Name(), "path", path, "warning", w)
		}

		key := nameKey(profile.Name())
		if first, dup := seen[key]; dup {
			logger.Warn("skipping duplicate profile", "profile", profile.Name(), "path", path, "first", first)
			continue
		}
		seen[key] = path
		profiles = append(profiles, profile)
	}

	logger.Debug("loaded profiles", "dir", dir, "files", len(files), "profiles", len(profiles))
	return profiles, nil
}

func hasProfileExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// DirSource keeps a Registry in sync with a profile directory.
type DirSource struct {
	logger   hclog.Logger
	dir      string
	registry *Registry

	mu      sync.Mutex
	watcher *hotreload.Watcher
	onLoad  func(count int)
}

// NewDirSource creates a source for dir feeding registry.
func NewDirSource(logger hclog.Logger, dir string, registry *Registry) *DirSource {
	return &DirSource{
		logger:   logger.Named("profile-source"),
		dir:      dir,
		registry: registry,
	}
}

// Load reads the directory and replaces the registry contents.
func (s *DirSource) Load() error {
	profiles, err := LoadDir(s.logger, s.dir)
	if err != nil {
		return err
	}
	if err := s.registry.Replace(profiles); err != nil {
		return err
	}
	s.logger.Info("profiles loaded", "dir", s.dir, "count", len(profiles))

	s.mu.Lock()
	onLoad := s.onLoad
	s.mu.Unlock()
	if onLoad != nil {
		onLoad(s.registry.Len())
	}
	return nil
}

// OnLoad registers fn to run after every successful load with the registry size.
func (s *DirSource) OnLoad(fn func(count int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLoad = fn
}

// Watch reloads the directory whenever a profile document changes. A zero
// delay uses the watcher default.
func (s *DirSource) Watch(delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watcher != nil {
		return nil
	}

	w, err := hotreload.New(s.logger, hotreload.Config{
		Paths:         []string{s.dir},
		Extensions:    Extensions,
		DebounceDelay: delay,
	}, func(reason string) {
		if err := s.Load(); err != nil {
			s.logger.Error("profile reload failed", "reason", reason, "error", err)
		}
	})
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		w.Stop()
		return err
	}
	s.watcher = w
	return nil
}

// Close stops watching and waits for an in-flight reload to finish.
func (s *DirSource) Close() error {
	s.mu.Lock()
	w := s.watcher
	s.watcher = nil
	s.mu.Unlock()

	// Stop waits on the reload callback, which takes s.mu
	if w == nil {
		return nil
	}
	return w.Stop()
}
