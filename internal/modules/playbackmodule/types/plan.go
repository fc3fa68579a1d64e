package types

import (
	"encoding/json"
	"strconv"
	"strings"
)

// EncodePlan is the fully resolved target of a transcode. It is immutable once
// produced; two plans built from identical inputs have identical cache keys.
type EncodePlan struct {
	container  string
	audioCodec string
	videoCodec string
	settings   Settings
	ruleIndex  int
}

// NewEncodePlan assembles a plan. Codec and container names are normalized.
func NewEncodePlan(container, audioCodec, videoCodec string, settings Settings, ruleIndex int) *EncodePlan {
	return &EncodePlan{
		container:  NormalizeContainer(container),
		audioCodec: NormalizeCodec(audioCodec),
		videoCodec: NormalizeCodec(videoCodec),
		settings:   settings.Without(),
		ruleIndex:  ruleIndex,
	}
}

func (p *EncodePlan) TargetContainer() string  { return p.container }
func (p *EncodePlan) TargetAudioCodec() string { return p.audioCodec }
func (p *EncodePlan) TargetVideoCodec() string { return p.videoCodec }
func (p *EncodePlan) Settings() Settings       { return p.settings }

// SourceRuleIndex is the index of the transcoding rule the plan was built from.
func (p *EncodePlan) SourceRuleIndex() int { return p.ruleIndex }

// CacheKey returns a canonical encoding of the plan, suitable for memoizing
// encoder invocations.
func (p *EncodePlan) CacheKey() string {
	var b strings.Builder
	b.WriteString("container=")
	b.WriteString(p.container)
	b.WriteString("|audio=")
	b.WriteString(p.audioCodec)
	b.WriteString("|video=")
	b.WriteString(p.videoCodec)
	b.WriteString("|rule=")
	b.WriteString(strconv.Itoa(p.ruleIndex))
	b.WriteString("|")
	b.WriteString(p.settings.Encode())
	return b.String()
}

// Equal reports whether two plans are structurally equal.
func (p *EncodePlan) Equal(other *EncodePlan) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.container == other.container &&
		p.audioCodec == other.audioCodec &&
		p.videoCodec == other.videoCodec &&
		p.ruleIndex == other.ruleIndex &&
		p.settings.Equal(other.settings)
}

type encodePlanJSON struct {
	TargetContainer  string   `json:"target_container"`
	TargetAudioCodec string   `json:"target_audio_codec"`
	TargetVideoCodec string   `json:"target_video_codec,omitempty"`
	Settings         Settings `json:"settings"`
	SourceRuleIndex  int      `json:"source_rule_index"`
}

func (p *EncodePlan) MarshalJSON() ([]byte, error) {
	return json.Marshal(encodePlanJSON{
		TargetContainer:  p.container,
		TargetAudioCodec: p.audioCodec,
		TargetVideoCodec: p.videoCodec,
		Settings:         p.settings,
		SourceRuleIndex:  p.ruleIndex,
	})
}
