// Package core provides the matching and planning core of the playback module.
package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
	perrors "github.com/mantonx/viewra-playback/internal/modules/playbackmodule/errors"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/types"
)

// DecisionEngine determines how a media item is served to a device based on
// the device's capability profile and the server encoding policy. It holds no
// per-call state and is safe for concurrent use.
type DecisionEngine struct {
	logger  hclog.Logger
	matcher *ProfileMatcher
	planner *EncodePlanner
}

// Evaluation is a decision together with the rule trace that produced it.
type Evaluation struct {
	Decision *types.PlaybackDecision
	Trace    []RuleHit
}

// NewDecisionEngine creates a new playback decision engine
func NewDecisionEngine(logger hclog.Logger) *DecisionEngine {
	return &DecisionEngine{
		logger:  logger,
		matcher: NewProfileMatcher(logger.Named("matcher")),
		planner: NewEncodePlanner(logger.Named("planner")),
	}
}

// Decide returns the playback decision for media on profile under policy.
// Unservable media yields an Unsupported decision; only configuration errors
// (InvalidRule, PolicyConflict) and invalid input are returned as errors.
func (de *DecisionEngine) Decide(media *types.MediaDescriptor, profile *types.CapabilityProfile, policy types.EncodingPolicy) (*types.PlaybackDecision, error) {
	eval, err := de.Evaluate(media, profile, policy)
	if err != nil {
		return nil, err
	}
	return eval.Decision, nil
}

// Evaluate is Decide with the rule trace attached.
func (de *DecisionEngine) Evaluate(media *types.MediaDescriptor, profile *types.CapabilityProfile, policy types.EncodingPolicy) (*Evaluation, error) {
	if media == nil {
		return nil, perrors.ValidationError("decide", fmt.Errorf("%w: media descriptor is required", perrors.ErrInvalidInput))
	}
	if profile == nil {
		return nil, perrors.ValidationError("decide", fmt.Errorf("%w: capability profile is required", perrors.ErrInvalidInput))
	}

	mediaType := media.MediaType()
	container := types.NormalizeContainer(media.Container)

	if container == "" {
		return &Evaluation{Decision: types.Unsupported(profile.Name(), fmt.Sprintf(
			"%v: %s media declares no container (profile '%s')",
			perrors.ErrUnsupportedContainer, displayType(mediaType), profile.Name()))}, nil
	}

	match := de.matcher.Match(media, profile, MatchOptions{AllowDirectStream: policy.EnableDirectStream})
	eval := &Evaluation{Trace: match.Trace}

	switch match.Kind {
	case types.DecisionDirectPlay:
		eval.Decision = types.DirectPlay(profile.Name(), match.RuleIndex, match.Container)

	case types.DecisionDirectStream:
		eval.Decision = types.DirectStream(profile.Name(), match.RuleIndex, container, match.Container)

	case types.DecisionTranscode:
		plan, err := de.planner.Plan(match.TranscodingRule, match.RuleIndex, media, policy)
		if err != nil {
			if errors.Is(err, perrors.ErrUnsupportedCodec) {
				eval.Decision = types.Unsupported(profile.Name(), fmt.Sprintf(
					"Cannot transcode %s media in container '%s' for profile '%s': %v",
					displayType(mediaType), container, profile.Name(), errors.Unwrap(err)))
				break
			}
			var pErr *perrors.PlaybackError
			if errors.As(err, &pErr) {
				pErr.WithProfile(profile.Name()).
					WithDetail("container", container).
					WithDetail("media_type", string(mediaType))
			}
			de.logger.Error("Failed to plan transcode", "profile", profile.Name(), "rule", match.RuleIndex, "error", err)
			return nil, err
		}
		eval.Decision = types.Transcode(profile.Name(), plan, de.transcodeReason(match))

	default:
		eval.Decision = types.Unsupported(profile.Name(), fmt.Sprintf(
			"No rule in profile '%s' can serve %s media in container '%s'",
			profile.Name(), displayType(mediaType), container))
	}

	de.logger.Debug("Playback decision made",
		"profile", profile.Name(),
		"kind", eval.Decision.Kind,
		"rule", eval.Decision.RuleIndex,
		"reason", eval.Decision.Reason)

	return eval, nil
}

// DecideAll tries each profile in order and returns the first playable
// decision. When none is playable the last Unsupported decision is returned.
// Configuration errors from one profile move on to the next.
func (de *DecisionEngine) DecideAll(media *types.MediaDescriptor, profiles []*types.CapabilityProfile, policy types.EncodingPolicy) (*types.PlaybackDecision, error) {
	if len(profiles) == 0 {
		return nil, perrors.ValidationError("decide_all", fmt.Errorf("%w: no profiles given", perrors.ErrInvalidInput))
	}

	var last *types.PlaybackDecision
	var lastErr error
	for _, profile := range profiles {
		decision, err := de.Decide(media, profile, policy)
		if err != nil {
			if !perrors.IsConfigurationError(err) {
				return nil, err
			}
			de.logger.Warn("Skipping profile with configuration error", "profile", profile.Name(), "error", err)
			lastErr = err
			continue
		}
		if decision.IsPlayable() {
			return decision, nil
		}
		last = decision
	}
	if last == nil {
		return nil, lastErr
	}
	return last, nil
}

// transcodeReason explains why direct play was rejected, using the first
// direct play rule of the right media type that failed.
func (de *DecisionEngine) transcodeReason(match MatchResult) string {
	for _, hit := range match.Trace {
		if hit.Phase == PhaseDirectPlay && !hit.Matched && !strings.HasPrefix(hit.Reason, typeMismatchPrefix) {
			return fmt.Sprintf("Transcoding required: %s (direct play rule %d); using transcoding rule %d",
				hit.Reason, hit.Index, match.RuleIndex)
		}
	}
	return fmt.Sprintf("Transcoding required: no direct play rule for %s media; using transcoding rule %d",
		match.TranscodingRule.Type, match.RuleIndex)
}

func displayType(t types.MediaType) string {
	if t == types.MediaTypeUnknown {
		return "unknown"
	}
	return string(t)
}
