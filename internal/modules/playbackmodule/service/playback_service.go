// Package service provides the playback service implementation.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/core"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/core/repository"
	perrors "github.com/mantonx/viewra-playback/internal/modules/playbackmodule/errors"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/metrics"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/models"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/profiles"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/types"
)

// ProfileSource supplies capability profiles.
type ProfileSource interface {
	Resolve(device profiles.DeviceIdentity) *types.CapabilityProfile
	Get(name string) (*types.CapabilityProfile, error)
	Names() []string
}

// PolicySource supplies the current encoding policy. Implementations return
// a copy the caller may keep.
type PolicySource interface {
	Policy() types.EncodingPolicy
}

// MediaAnalyzer describes a media file on disk.
type MediaAnalyzer interface {
	Analyze(ctx context.Context, path string) (*types.MediaDescriptor, error)
}

// PolicyResolver fills in host-dependent policy values such as "auto"
// hardware acceleration.
type PolicyResolver interface {
	ResolvePolicy(ctx context.Context, policy types.EncodingPolicy) types.EncodingPolicy
}

// HistoryStore persists decisions.
type HistoryStore interface {
	Create(ctx context.Context, record *models.DecisionRecord) error
	List(ctx context.Context, filter repository.DecisionFilter) ([]*models.DecisionRecord, error)
}

// Dependencies wires a PlaybackService. Profiles and Policy are required;
// the rest may be nil.
type Dependencies struct {
	Profiles ProfileSource
	Policy   PolicySource
	Analyzer MediaAnalyzer
	Resolver PolicyResolver
	History  HistoryStore
	Metrics  metrics.Recorder
}

// DecideRequest asks for a decision. Media takes precedence over MediaPath;
// ProfileName takes precedence over Device.
type DecideRequest struct {
	Device      profiles.DeviceIdentity `json:"device"`
	ProfileName string                  `json:"profile,omitempty"`
	MediaPath   string                  `json:"media_path,omitempty"`
	Media       *types.MediaDescriptor  `json:"media,omitempty"`
}

// DecideResponse carries the decision and what it was based on.
type DecideResponse struct {
	ID       string                  `json:"id,omitempty"`
	Decision *types.PlaybackDecision `json:"decision"`
	Media    *types.MediaDescriptor  `json:"media"`
	Trace    []core.RuleHit          `json:"trace,omitempty"`
}

// PlaybackService coordinates profile lookup, media analysis, the decision
// engine and decision history.
type PlaybackService struct {
	logger   hclog.Logger
	engine   *core.DecisionEngine
	profiles ProfileSource
	policy   PolicySource
	analyzer MediaAnalyzer
	resolver PolicyResolver
	history  HistoryStore
	metrics  metrics.Recorder
}

// NewPlaybackService creates a new playback service
func NewPlaybackService(logger hclog.Logger, deps Dependencies) *PlaybackService {
	recorder := deps.Metrics
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &PlaybackService{
		logger:   logger,
		engine:   core.NewDecisionEngine(logger.Named("engine")),
		profiles: deps.Profiles,
		policy:   deps.Policy,
		analyzer: deps.Analyzer,
		resolver: deps.Resolver,
		history:  deps.History,
		metrics:  recorder,
	}
}

// Decide resolves the profile and media for req and runs the decision engine.
func (s *PlaybackService) Decide(ctx context.Context, req DecideRequest) (*DecideResponse, error) {
	media, err := s.media(ctx, req)
	if err != nil {
		s.metrics.ObserveError(err)
		return nil, err
	}

	profile, err := s.profile(req)
	if err != nil {
		s.metrics.ObserveError(err)
		return nil, err
	}

	policy := s.policy.Policy()
	if s.resolver != nil {
		policy = s.resolver.ResolvePolicy(ctx, policy)
	}

	start := time.Now()
	eval, err := s.engine.Evaluate(media, profile, policy)
	elapsed := time.Since(start)
	if err != nil {
		s.metrics.ObserveError(err)
		s.logger.Warn("playback decision failed",
			"profile", profile.Name(),
			"container", media.Container,
			"error", err)
		return nil, err
	}
	s.metrics.ObserveDecision(eval.Decision, elapsed)

	s.logger.Info("playback decision made",
		"profile", profile.Name(),
		"container", media.Container,
		"kind", eval.Decision.Kind,
		"rule", eval.Decision.RuleIndex,
		"elapsed", elapsed)

	resp := &DecideResponse{
		Decision: eval.Decision,
		Media:    media,
		Trace:    eval.Trace,
	}

	if s.history != nil {
		record := models.NewDecisionRecord(eval.Decision, media)
		record.DeviceName = req.Device.Name
		record.UserAgent = req.Device.UserAgent
		if err := s.history.Create(ctx, record); err != nil {
			// History is best effort; the decision stands
			s.logger.Warn("failed to record playback decision", "error", err)
		} else {
			resp.ID = record.ID
		}
	}
	return resp, nil
}

func (s *PlaybackService) media(ctx context.Context, req DecideRequest) (*types.MediaDescriptor, error) {
	if req.Media != nil {
		return req.Media, nil
	}
	if req.MediaPath == "" {
		return nil, perrors.ValidationError("decide", fmt.Errorf("%w: media or media_path is required", perrors.ErrInvalidInput))
	}
	if s.analyzer == nil {
		return nil, perrors.ValidationError("decide", fmt.Errorf("%w: media analysis is not available", perrors.ErrInvalidInput))
	}
	return s.analyzer.Analyze(ctx, req.MediaPath)
}

func (s *PlaybackService) profile(req DecideRequest) (*types.CapabilityProfile, error) {
	if req.ProfileName != "" {
		return s.profiles.Get(req.ProfileName)
	}
	return s.profiles.Resolve(req.Device), nil
}

// Profile returns a profile by name.
func (s *PlaybackService) Profile(name string) (*types.CapabilityProfile, error) {
	return s.profiles.Get(name)
}

// ProfileNames lists the resolvable profiles.
func (s *PlaybackService) ProfileNames() []string {
	return s.profiles.Names()
}

// Policy returns the effective encoding policy.
func (s *PlaybackService) Policy(ctx context.Context) types.EncodingPolicy {
	policy := s.policy.Policy()
	if s.resolver != nil {
		policy = s.resolver.ResolvePolicy(ctx, policy)
	}
	return policy
}

// History lists recorded decisions. It returns an empty list when no store
// is configured.
func (s *PlaybackService) History(ctx context.Context, filter repository.DecisionFilter) ([]*models.DecisionRecord, error) {
	if s.history == nil {
		return []*models.DecisionRecord{}, nil
	}
	return s.history.List(ctx, filter)
}

// HistoryEnabled reports whether decisions are persisted.
func (s *PlaybackService) HistoryEnabled() bool {
	return s.history != nil
}
