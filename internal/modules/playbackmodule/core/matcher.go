package core

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/types"
)

// MatchPhase names the rule list a trace entry was evaluated from.
type MatchPhase string

const (
	PhaseDirectPlay   MatchPhase = "direct_play"
	PhaseDirectStream MatchPhase = "direct_stream"
	PhaseTranscoding  MatchPhase = "transcoding"
)

const typeMismatchPrefix = "rule is for "

// RuleHit records the evaluation of one rule.
type RuleHit struct {
	Phase   MatchPhase `json:"phase"`
	Index   int        `json:"index"`
	Matched bool       `json:"matched"`
	Reason  string     `json:"reason"`
}

// MatchOptions tunes a match.
type MatchOptions struct {
	// AllowDirectStream enables the container remux pass
	AllowDirectStream bool
}

// MatchResult is the outcome of matching a media item against a profile.
// TranscodingRule is set only for DecisionTranscode.
type MatchResult struct {
	Kind            types.DecisionKind
	RuleIndex       int
	Container       string
	TranscodingRule types.TranscodingRule
	Trace           []RuleHit
}

// ProfileMatcher selects the rule of a profile that governs a media item.
// Rules are evaluated in declared order and the first match wins.
type ProfileMatcher struct {
	logger hclog.Logger
}

// NewProfileMatcher creates a new profile matcher
func NewProfileMatcher(logger hclog.Logger) *ProfileMatcher {
	return &ProfileMatcher{logger: logger}
}

// Match evaluates direct play rules, then direct stream eligibility when
// allowed, then transcoding rules.
func (pm *ProfileMatcher) Match(media *types.MediaDescriptor, profile *types.CapabilityProfile, opts MatchOptions) MatchResult {
	mediaType := media.MediaType()
	container := types.NormalizeContainer(media.Container)
	result := MatchResult{Kind: types.DecisionUnsupported, RuleIndex: -1}

	directPlay := profile.DirectPlayRules()
	for i, rule := range directPlay {
		ok, reason := directPlayMatches(rule, media, mediaType, container)
		result.Trace = append(result.Trace, RuleHit{Phase: PhaseDirectPlay, Index: i, Matched: ok, Reason: reason})
		if ok {
			result.Kind = types.DecisionDirectPlay
			result.RuleIndex = i
			result.Container = container
			pm.logger.Debug("Direct play rule matched", "profile", profile.Name(), "rule", i, "container", container)
			return result
		}
	}

	if opts.AllowDirectStream {
		for i, rule := range directPlay {
			ok, reason := directStreamMatches(rule, media, mediaType, container)
			result.Trace = append(result.Trace, RuleHit{Phase: PhaseDirectStream, Index: i, Matched: ok, Reason: reason})
			if ok {
				result.Kind = types.DecisionDirectStream
				result.RuleIndex = i
				result.Container = rule.Containers.First()
				pm.logger.Debug("Direct stream rule matched", "profile", profile.Name(), "rule", i,
					"from", container, "to", result.Container)
				return result
			}
		}
	}

	for i, rule := range profile.TranscodingRules() {
		if rule.Type != mediaType {
			result.Trace = append(result.Trace, RuleHit{Phase: PhaseTranscoding, Index: i,
				Reason: typeMismatchPrefix + string(rule.Type) + " media"})
			continue
		}
		result.Trace = append(result.Trace, RuleHit{Phase: PhaseTranscoding, Index: i, Matched: true,
			Reason: fmt.Sprintf("first %s transcoding rule", rule.Type)})
		result.Kind = types.DecisionTranscode
		result.RuleIndex = i
		result.Container = rule.Container
		result.TranscodingRule = rule
		pm.logger.Debug("Transcoding rule selected", "profile", profile.Name(), "rule", i, "target", rule.Container)
		return result
	}

	pm.logger.Debug("No rule matched", "profile", profile.Name(), "container", container, "type", mediaType)
	return result
}

func directPlayMatches(rule types.DirectPlayRule, media *types.MediaDescriptor, mediaType types.MediaType, container string) (bool, string) {
	if rule.Type != mediaType {
		return false, typeMismatchPrefix + string(rule.Type) + " media"
	}
	if !rule.Containers.Contains(container) {
		return false, fmt.Sprintf("container '%s' not in %s", container, rule.Containers)
	}
	if ok, reason := codecsAllowed(rule, media); !ok {
		return false, reason
	}
	return true, "container and codecs compatible"
}

// directStreamMatches accepts a rule whose codec allow-lists cover every
// relevant stream although the container is not declared. A rule without
// allow-lists for the streams present establishes nothing about codecs and
// never qualifies.
func directStreamMatches(rule types.DirectPlayRule, media *types.MediaDescriptor, mediaType types.MediaType, container string) (bool, string) {
	if rule.Type != mediaType {
		return false, typeMismatchPrefix + string(rule.Type) + " media"
	}
	if rule.Containers.Contains(container) {
		return false, "container declared but codecs incompatible"
	}

	videoStreams := media.VideoStreams()
	audioStreams := media.AudioStreams()
	if len(videoStreams) == 0 && len(audioStreams) == 0 {
		return false, "media has no streams to remux"
	}
	if rule.Type == types.MediaTypeVideo && len(videoStreams) > 0 && rule.VideoCodecs.IsEmpty() {
		return false, "rule declares no video codecs"
	}
	if len(audioStreams) > 0 && rule.AudioCodecs.IsEmpty() {
		return false, "rule declares no audio codecs"
	}
	if ok, reason := codecsAllowed(rule, media); !ok {
		return false, reason
	}
	return true, fmt.Sprintf("codecs compatible, remux into %s", rule.Containers.First())
}

// codecsAllowed checks every stream relevant to the rule against its
// allow-lists. Empty allow-lists accept any codec and subtitles are ignored.
func codecsAllowed(rule types.DirectPlayRule, media *types.MediaDescriptor) (bool, string) {
	for _, stream := range media.Streams {
		switch stream.Type {
		case types.StreamTypeVideo:
			if rule.Type != types.MediaTypeVideo || rule.VideoCodecs.IsEmpty() {
				continue
			}
			if !rule.VideoCodecs.Contains(stream.Codec) {
				return false, fmt.Sprintf("video codec '%s' not supported", types.NormalizeCodec(stream.Codec))
			}
		case types.StreamTypeAudio:
			if rule.AudioCodecs.IsEmpty() {
				continue
			}
			if !rule.AudioCodecs.Contains(stream.Codec) {
				return false, fmt.Sprintf("audio codec '%s' not supported", types.NormalizeCodec(stream.Codec))
			}
		}
	}
	return true, ""
}
