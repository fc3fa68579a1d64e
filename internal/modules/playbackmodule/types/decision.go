package types

import (
	"encoding/json"
	"fmt"
)

// DecisionKind is the outcome category of a playback decision.
type DecisionKind string

const (
	DecisionDirectPlay   DecisionKind = "direct_play"
	DecisionDirectStream DecisionKind = "direct_stream"
	DecisionTranscode    DecisionKind = "transcode"
	DecisionUnsupported  DecisionKind = "unsupported"
)

// PlaybackDecision is the result of deciding how a media item is served to a
// device. Plan is set only for DecisionTranscode.
type PlaybackDecision struct {
	Kind        DecisionKind `json:"kind"`
	ProfileName string       `json:"profile"`
	RuleIndex   int          `json:"rule_index"`
	Container   string       `json:"container,omitempty"`
	Plan        *EncodePlan  `json:"plan,omitempty"`
	Reason      string       `json:"reason"`
}

// DirectPlay builds a direct play decision for the matched rule.
func DirectPlay(profile string, ruleIndex int, container string) *PlaybackDecision {
	return &PlaybackDecision{
		Kind:        DecisionDirectPlay,
		ProfileName: profile,
		RuleIndex:   ruleIndex,
		Container:   container,
		Reason:      fmt.Sprintf("File is fully compatible with device (direct play rule %d)", ruleIndex),
	}
}

// DirectStream builds a remux decision into container.
func DirectStream(profile string, ruleIndex int, fromContainer, toContainer string) *PlaybackDecision {
	return &PlaybackDecision{
		Kind:        DecisionDirectStream,
		ProfileName: profile,
		RuleIndex:   ruleIndex,
		Container:   toContainer,
		Reason: fmt.Sprintf("Container format '%s' not supported, remuxing to %s (direct play rule %d)",
			fromContainer, toContainer, ruleIndex),
	}
}

// Transcode wraps plan in a transcode decision.
func Transcode(profile string, plan *EncodePlan, reason string) *PlaybackDecision {
	return &PlaybackDecision{
		Kind:        DecisionTranscode,
		ProfileName: profile,
		RuleIndex:   plan.SourceRuleIndex(),
		Container:   plan.TargetContainer(),
		Plan:        plan,
		Reason:      reason,
	}
}

// Unsupported builds a decision for media no rule can serve.
func Unsupported(profile, reason string) *PlaybackDecision {
	return &PlaybackDecision{
		Kind:        DecisionUnsupported,
		ProfileName: profile,
		RuleIndex:   -1,
		Reason:      reason,
	}
}

// IsPlayable reports whether the decision serves the media in some form.
func (d *PlaybackDecision) IsPlayable() bool {
	return d.Kind != DecisionUnsupported
}

func (d *PlaybackDecision) String() string {
	b, err := json.Marshal(d)
	if err != nil {
		return string(d.Kind)
	}
	return string(b)
}
