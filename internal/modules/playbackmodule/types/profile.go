// Package types defines the data model shared by the playback decision core
// and the components that feed it.
package types

import (
	"encoding/json"
	"fmt"
	"strings"

	perrors "github.com/mantonx/viewra-playback/internal/modules/playbackmodule/errors"
)

// MediaType is the playback category a rule or media item belongs to.
type MediaType string

const (
	MediaTypeUnknown MediaType = ""
	MediaTypeAudio   MediaType = "Audio"
	MediaTypeVideo   MediaType = "Video"
	MediaTypePhoto   MediaType = "Photo"
)

// ParseMediaType resolves a media type case-insensitively.
func ParseMediaType(s string) (MediaType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "audio":
		return MediaTypeAudio, true
	case "video":
		return MediaTypeVideo, true
	case "photo":
		return MediaTypePhoto, true
	}
	return MediaTypeUnknown, false
}

// Valid reports whether t is one of the declared media types.
func (t MediaType) Valid() bool {
	return t == MediaTypeAudio || t == MediaTypeVideo || t == MediaTypePhoto
}

// tokenSet is an ordered, duplicate-free list of normalized tokens.
type tokenSet struct {
	tokens []string
}

func parseTokens(op string, values []string, normalize func(string) string) (tokenSet, error) {
	var set tokenSet
	seen := make(map[string]bool)
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			token := normalize(part)
			if token == "" {
				continue
			}
			if seen[token] {
				return tokenSet{}, perrors.RuleError(op, "duplicate entry %q", token)
			}
			seen[token] = true
			set.tokens = append(set.tokens, token)
		}
	}
	return set, nil
}

// Contains reports whether the normalized token is a member.
func (s tokenSet) Contains(token string) bool {
	for _, t := range s.tokens {
		if t == token {
			return true
		}
	}
	return false
}

// Values returns a copy of the members in declared order.
func (s tokenSet) Values() []string {
	out := make([]string, len(s.tokens))
	copy(out, s.tokens)
	return out
}

// First returns the first declared member.
func (s tokenSet) First() string {
	if len(s.tokens) == 0 {
		return ""
	}
	return s.tokens[0]
}

func (s tokenSet) Len() int       { return len(s.tokens) }
func (s tokenSet) IsEmpty() bool  { return len(s.tokens) == 0 }
func (s tokenSet) String() string { return strings.Join(s.tokens, ",") }

func (s tokenSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// ContainerSet is a set of container names, such as "avi,mp4".
type ContainerSet struct{ tokenSet }

// ParseContainerSet parses comma-separated container names. Duplicates after
// alias normalization are an InvalidRule.
func ParseContainerSet(values ...string) (ContainerSet, error) {
	set, err := parseTokens("parse_containers", values, NormalizeContainer)
	return ContainerSet{set}, err
}

// Contains reports whether container, after normalization, is a member.
func (s ContainerSet) Contains(container string) bool {
	return s.tokenSet.Contains(NormalizeContainer(container))
}

// CodecSet is a set of codec identifiers, such as "h264,hevc".
type CodecSet struct{ tokenSet }

// ParseCodecSet parses comma-separated codec identifiers.
func ParseCodecSet(values ...string) (CodecSet, error) {
	set, err := parseTokens("parse_codecs", values, NormalizeCodec)
	return CodecSet{set}, err
}

// Contains reports whether codec, after normalization, is a member.
func (s CodecSet) Contains(codec string) bool {
	return s.tokenSet.Contains(NormalizeCodec(codec))
}

// DirectPlayRule declares a format the device plays without modification.
// Empty codec sets accept any codec.
type DirectPlayRule struct {
	Containers  ContainerSet `json:"containers"`
	Type        MediaType    `json:"type"`
	VideoCodecs CodecSet     `json:"video_codecs"`
	AudioCodecs CodecSet     `json:"audio_codecs"`
}

// TranscodingRule declares a target format for a media type.
type TranscodingRule struct {
	Container  string    `json:"container"`
	Type       MediaType `json:"type"`
	AudioCodec string    `json:"audio_codec"`
	VideoCodec string    `json:"video_codec,omitempty"`
	Settings   Settings  `json:"settings"`
}

func (r TranscodingRule) normalized() TranscodingRule {
	r.Container = NormalizeContainer(r.Container)
	r.AudioCodec = NormalizeCodec(r.AudioCodec)
	r.VideoCodec = NormalizeCodec(r.VideoCodec)
	return r
}

// ProfileIdentity is the identification metadata of a profile. It takes no
// part in matching beyond device lookup.
type ProfileIdentity struct {
	Name              string   `json:"name" yaml:"name"`
	ProtocolInfo      string   `json:"protocol_info,omitempty" yaml:"protocol_info"`
	FriendlyName      string   `json:"friendly_name,omitempty" yaml:"friendly_name"`
	Manufacturer      string   `json:"manufacturer,omitempty" yaml:"manufacturer"`
	ManufacturerURL   string   `json:"manufacturer_url,omitempty" yaml:"manufacturer_url"`
	ModelName         string   `json:"model_name,omitempty" yaml:"model_name"`
	ModelNumber       string   `json:"model_number,omitempty" yaml:"model_number"`
	ModelDescription  string   `json:"model_description,omitempty" yaml:"model_description"`
	ModelURL          string   `json:"model_url,omitempty" yaml:"model_url"`
	UserAgentPatterns []string `json:"user_agent_patterns,omitempty" yaml:"user_agent_patterns"`
}

func (id ProfileIdentity) clone() ProfileIdentity {
	id.UserAgentPatterns = append([]string(nil), id.UserAgentPatterns...)
	return id
}

// CapabilityProfile describes what a device plays directly and how to
// transcode for it otherwise. Rule sequences are fixed at construction.
type CapabilityProfile struct {
	identity    ProfileIdentity
	directPlay  []DirectPlayRule
	transcoding []TranscodingRule
}

// NewCapabilityProfile copies and validates the given rules.
func NewCapabilityProfile(identity ProfileIdentity, directPlay []DirectPlayRule, transcoding []TranscodingRule) (*CapabilityProfile, error) {
	p := &CapabilityProfile{
		identity:    identity.clone(),
		directPlay:  append([]DirectPlayRule(nil), directPlay...),
		transcoding: make([]TranscodingRule, len(transcoding)),
	}
	for i, rule := range transcoding {
		p.transcoding[i] = rule.normalized()
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Name returns the profile name.
func (p *CapabilityProfile) Name() string { return p.identity.Name }

// Identity returns a copy of the identification metadata.
func (p *CapabilityProfile) Identity() ProfileIdentity { return p.identity.clone() }

// DirectPlayRules returns the direct play rules in declared order.
func (p *CapabilityProfile) DirectPlayRules() []DirectPlayRule {
	return append([]DirectPlayRule(nil), p.directPlay...)
}

// TranscodingRules returns the transcoding rules in declared order.
func (p *CapabilityProfile) TranscodingRules() []TranscodingRule {
	return append([]TranscodingRule(nil), p.transcoding...)
}

// Validate checks the structural invariants of every rule.
func (p *CapabilityProfile) Validate() error {
	for i, rule := range p.directPlay {
		if err := validateDirectPlayRule(rule); err != nil {
			return err.WithProfile(p.identity.Name).WithRule(i).WithDetail("phase", "direct_play")
		}
	}
	for i, rule := range p.transcoding {
		if err := validateTranscodingRule(rule); err != nil {
			return err.WithProfile(p.identity.Name).WithRule(i).WithDetail("phase", "transcoding")
		}
	}
	return nil
}

func validateDirectPlayRule(rule DirectPlayRule) *perrors.PlaybackError {
	if !rule.Type.Valid() {
		return perrors.RuleError("validate_profile", "direct play rule has no media type")
	}
	if rule.Containers.IsEmpty() {
		return perrors.RuleError("validate_profile", "direct play rule declares no container")
	}
	if rule.Type == MediaTypeAudio && !rule.VideoCodecs.IsEmpty() {
		return perrors.RuleError("validate_profile", "audio rule declares video codecs %q", rule.VideoCodecs.String())
	}
	return nil
}

func validateTranscodingRule(rule TranscodingRule) *perrors.PlaybackError {
	if !rule.Type.Valid() {
		return perrors.RuleError("validate_profile", "transcoding rule has no media type")
	}
	if rule.Container == "" {
		return perrors.RuleError("validate_profile", "transcoding rule has no target container")
	}
	if rule.Type == MediaTypeAudio && rule.VideoCodec != "" {
		return perrors.RuleError("validate_profile", "audio rule declares video codec %q", rule.VideoCodec)
	}
	return nil
}

type profileJSON struct {
	ProfileIdentity
	DirectPlayRules  []DirectPlayRule  `json:"direct_play_rules"`
	TranscodingRules []TranscodingRule `json:"transcoding_rules"`
}

// MarshalJSON exposes the profile for diagnostics.
func (p *CapabilityProfile) MarshalJSON() ([]byte, error) {
	return json.Marshal(profileJSON{
		ProfileIdentity:  p.identity,
		DirectPlayRules:  p.directPlay,
		TranscodingRules: p.transcoding,
	})
}

func (p *CapabilityProfile) String() string {
	return fmt.Sprintf("%s (%d direct play, %d transcoding rules)", p.identity.Name, len(p.directPlay), len(p.transcoding))
}
