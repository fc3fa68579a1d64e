// Package profiles loads device capability profiles and resolves which one
// applies to a requesting client.
package profiles

import (
	"bytes"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	perrors "github.com/mantonx/viewra-playback/internal/modules/playbackmodule/errors"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/types"
)

// Document is the on-disk form of a capability profile. JSON documents parse
// through the same decoder since JSON is valid YAML.
type Document struct {
	types.ProfileIdentity `yaml:",inline"`

	DirectPlay  []DirectPlayDocument  `yaml:"direct_play"`
	Transcoding []TranscodingDocument `yaml:"transcoding"`
}

// DirectPlayDocument is a direct play rule with comma-separated lists.
type DirectPlayDocument struct {
	Container  string `yaml:"container"`
	Type       string `yaml:"type"`
	VideoCodec string `yaml:"video_codec,omitempty"`
	AudioCodec string `yaml:"audio_codec,omitempty"`
}

// TranscodingDocument is a transcoding rule with settings keyed by name.
type TranscodingDocument struct {
	Container  string            `yaml:"container"`
	Type       string            `yaml:"type"`
	AudioCodec string            `yaml:"audio_codec"`
	VideoCodec string            `yaml:"video_codec,omitempty"`
	Settings   map[string]string `yaml:"settings,omitempty"`
}

// ParseDocument decodes a profile document. Unknown top-level fields are
// rejected so typos surface at load time.
func ParseDocument(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, perrors.ValidationError("parse_profile", fmt.Errorf("%w: empty profile document", perrors.ErrInvalidInput))
		}
		return nil, perrors.Wrap(err, perrors.ErrorTypeValidation, "parse_profile")
	}
	return &doc, nil
}

// ParseDocumentBytes is ParseDocument over a byte slice.
func ParseDocumentBytes(data []byte) (*Document, error) {
	return ParseDocument(bytes.NewReader(data))
}

// ToProfile builds a validated profile. Setting names this build does not
// recognize are kept on the rule and reported as warnings.
func (d *Document) ToProfile() (*types.CapabilityProfile, []string, error) {
	if d.Name == "" {
		return nil, nil, perrors.ValidationError("build_profile", fmt.Errorf("%w: profile has no name", perrors.ErrInvalidInput))
	}

	var warnings []string
	directPlay := make([]types.DirectPlayRule, 0, len(d.DirectPlay))
	for i, doc := range d.DirectPlay {
		rule, err := doc.rule()
		if err != nil {
			return nil, nil, annotate(err, d.Name, i, "direct_play")
		}
		directPlay = append(directPlay, rule)
	}

	transcoding := make([]types.TranscodingRule, 0, len(d.Transcoding))
	for i, doc := range d.Transcoding {
		rule, err := doc.rule()
		if err != nil {
			return nil, nil, annotate(err, d.Name, i, "transcoding")
		}
		for _, name := range rule.Settings.Unknown() {
			warnings = append(warnings, fmt.Sprintf("transcoding rule %d: unknown setting %q", i, name))
		}
		transcoding = append(transcoding, rule)
	}

	profile, err := types.NewCapabilityProfile(d.ProfileIdentity, directPlay, transcoding)
	if err != nil {
		return nil, nil, err
	}
	return profile, warnings, nil
}

func (d DirectPlayDocument) rule() (types.DirectPlayRule, error) {
	mediaType, err := parseType(d.Type)
	if err != nil {
		return types.DirectPlayRule{}, err
	}
	containers, err := types.ParseContainerSet(d.Container)
	if err != nil {
		return types.DirectPlayRule{}, err
	}
	videoCodecs, err := types.ParseCodecSet(d.VideoCodec)
	if err != nil {
		return types.DirectPlayRule{}, err
	}
	audioCodecs, err := types.ParseCodecSet(d.AudioCodec)
	if err != nil {
		return types.DirectPlayRule{}, err
	}
	return types.DirectPlayRule{
		Containers:  containers,
		Type:        mediaType,
		VideoCodecs: videoCodecs,
		AudioCodecs: audioCodecs,
	}, nil
}

func (d TranscodingDocument) rule() (types.TranscodingRule, error) {
	mediaType, err := parseType(d.Type)
	if err != nil {
		return types.TranscodingRule{}, err
	}
	settings, err := types.ParseSettings(d.Settings)
	if err != nil {
		return types.TranscodingRule{}, err
	}
	return types.TranscodingRule{
		Container:  d.Container,
		Type:       mediaType,
		AudioCodec: d.AudioCodec,
		VideoCodec: d.VideoCodec,
		Settings:   settings,
	}, nil
}

func parseType(raw string) (types.MediaType, error) {
	mediaType, ok := types.ParseMediaType(raw)
	if !ok {
		return types.MediaTypeUnknown, perrors.RuleError("build_profile", "unknown media type %q", raw)
	}
	return mediaType, nil
}

func annotate(err error, profile string, index int, phase string) error {
	pErr, ok := err.(*perrors.PlaybackError)
	if !ok {
		return err
	}
	return pErr.WithProfile(profile).WithRule(index).WithDetail("phase", phase)
}

// FromProfile converts a profile back to its document form.
func FromProfile(p *types.CapabilityProfile) *Document {
	doc := &Document{ProfileIdentity: p.Identity()}
	for _, rule := range p.DirectPlayRules() {
		doc.DirectPlay = append(doc.DirectPlay, DirectPlayDocument{
			Container:  rule.Containers.String(),
			Type:       string(rule.Type),
			VideoCodec: rule.VideoCodecs.String(),
			AudioCodec: rule.AudioCodecs.String(),
		})
	}
	for _, rule := range p.TranscodingRules() {
		var settings map[string]string
		if rule.Settings.Len() > 0 || len(rule.Settings.Unknown()) > 0 {
			settings = rule.Settings.Raw()
		}
		doc.Transcoding = append(doc.Transcoding, TranscodingDocument{
			Container:  rule.Container,
			Type:       string(rule.Type),
			AudioCodec: rule.AudioCodec,
			VideoCodec: rule.VideoCodec,
			Settings:   settings,
		})
	}
	return doc
}

// Marshal encodes the document as YAML.
func (d *Document) Marshal() ([]byte, error) {
	return yaml.Marshal(d)
}
