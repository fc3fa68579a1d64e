package profiles

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"

	perrors "github.com/mantonx/viewra-playback/internal/modules/playbackmodule/errors"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/types"
)

// DeviceIdentity is what a client tells us about itself.
type DeviceIdentity struct {
	Name      string `json:"name,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// entry pairs a profile with its compiled user agent patterns.
type entry struct {
	profile  *types.CapabilityProfile
	patterns []*regexp.Regexp
}

// Registry holds the active profile set. Profiles are immutable, so readers
// share them freely; Replace swaps the whole set at once.
type Registry struct {
	logger   hclog.Logger
	fallback *types.CapabilityProfile

	// writeMu serializes Replace and Register so a read-modify-write of
	// the set cannot lose a concurrent update
	writeMu sync.Mutex

	mu      sync.RWMutex
	entries []entry
	byName  map[string]int
}

// NewRegistry creates a registry that resolves to fallback when nothing
// matches. A nil fallback selects DefaultProfile.
func NewRegistry(logger hclog.Logger, fallback *types.CapabilityProfile) *Registry {
	if fallback == nil {
		fallback = DefaultProfile()
	}
	return &Registry{
		logger:   logger.Named("profile-registry"),
		fallback: fallback,
		byName:   make(map[string]int),
	}
}

// Replace installs a new profile set. Names must be unique
// (case-insensitively) and user agent patterns must compile; on error the
// current set is left untouched.
func (r *Registry) Replace(profiles []*types.CapabilityProfile) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.replaceLocked(profiles)
}

func (r *Registry) replaceLocked(profiles []*types.CapabilityProfile) error {
	entries := make([]entry, 0, len(profiles))
	byName := make(map[string]int, len(profiles))

	for _, profile := range profiles {
		if profile == nil {
			continue
		}
		key := nameKey(profile.Name())
		if _, exists := byName[key]; exists {
			return perrors.ValidationError("replace_profiles",
				fmt.Errorf("%w: duplicate profile name %q", perrors.ErrInvalidInput, profile.Name()))
		}

		patterns, err := compilePatterns(profile.Identity().UserAgentPatterns)
		if err != nil {
			return perrors.ValidationError("replace_profiles", err).WithProfile(profile.Name())
		}

		byName[key] = len(entries)
		entries = append(entries, entry{profile: profile, patterns: patterns})
	}

	r.mu.Lock()
	r.entries = entries
	r.byName = byName
	r.mu.Unlock()

	r.logger.Info("profile set replaced", "count", len(entries))
	return nil
}

// Register adds a single profile to the current set.
func (r *Registry) Register(profile *types.CapabilityProfile) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.replaceLocked(append(r.Profiles(), profile))
}

// Get returns the profile registered under name. The fallback profile is
// always reachable by its own name.
func (r *Registry) Get(name string) (*types.CapabilityProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i, ok := r.byName[nameKey(name)]; ok {
		return r.entries[i].profile, nil
	}
	if nameKey(name) == nameKey(r.fallback.Name()) {
		return r.fallback, nil
	}
	return nil, perrors.New(perrors.ErrorTypeValidation, "get_profile", perrors.ErrProfileNotFound).
		WithProfile(name)
}

// Resolve picks the profile for a device: an exact name match first, then
// the first profile whose user agent pattern matches, then the fallback.
func (r *Registry) Resolve(device DeviceIdentity) *types.CapabilityProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if device.Name != "" {
		if i, ok := r.byName[nameKey(device.Name)]; ok {
			return r.entries[i].profile
		}
	}

	if device.UserAgent != "" {
		for _, e := range r.entries {
			for _, pattern := range e.patterns {
				if pattern.MatchString(device.UserAgent) {
					return e.profile
				}
			}
		}
	}

	r.logger.Debug("no device profile matched, using fallback", "name", device.Name, "user_agent", device.UserAgent)
	return r.fallback
}

// Default returns the fallback profile.
func (r *Registry) Default() *types.CapabilityProfile {
	return r.fallback
}

// Profiles returns the registered profiles in registration order, without
// the fallback.
func (r *Registry) Profiles() []*types.CapabilityProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*types.CapabilityProfile, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.profile
	}
	return out
}

// Names returns every resolvable profile name, sorted, including the fallback.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries)+1)
	seenFallback := false
	for _, e := range r.entries {
		names = append(names, e.profile.Name())
		if nameKey(e.profile.Name()) == nameKey(r.fallback.Name()) {
			seenFallback = true
		}
	}
	if !seenFallback {
		names = append(names, r.fallback.Name())
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered profiles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func compilePatterns(raw []string) ([]*regexp.Regexp, error) {
	patterns := make([]*regexp.Regexp, 0, len(raw))
	for _, p := range raw {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("%w: bad user agent pattern %q: %v", perrors.ErrInvalidInput, p, err)
		}
		patterns = append(patterns, re)
	}
	return patterns, nil
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
