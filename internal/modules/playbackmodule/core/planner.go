package core

import (
	"strings"

	"github.com/hashicorp/go-hclog"
	perrors "github.com/mantonx/viewra-playback/internal/modules/playbackmodule/errors"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/types"
)

// EncodePlanner resolves a transcoding rule, a media item and the encoding
// policy into an encode plan. Rule settings are the base; policy overlays are
// applied in a fixed order and every overlay is gated by its policy toggle.
type EncodePlanner struct {
	logger hclog.Logger
}

// NewEncodePlanner creates a new encode planner
func NewEncodePlanner(logger hclog.Logger) *EncodePlanner {
	return &EncodePlanner{logger: logger}
}

// resolved is the working set of a plan being built.
type resolved map[types.SettingName]types.Value

func (r resolved) setDefault(name types.SettingName, v types.Value) {
	if _, ok := r[name]; !ok {
		r[name] = v
	}
}

func (r resolved) remove(names ...types.SettingName) {
	for _, name := range names {
		delete(r, name)
	}
}

// Plan produces the encode plan for rule. ruleIndex is carried into the plan
// for diagnostics.
func (ep *EncodePlanner) Plan(rule types.TranscodingRule, ruleIndex int, media *types.MediaDescriptor, policy types.EncodingPolicy) (*types.EncodePlan, error) {
	rule.Container = types.NormalizeContainer(rule.Container)
	rule.AudioCodec = types.NormalizeCodec(rule.AudioCodec)
	rule.VideoCodec = types.NormalizeCodec(rule.VideoCodec)

	if err := ep.validate(rule, media, policy); err != nil {
		return nil, err.WithRule(ruleIndex)
	}

	settings := make(resolved, rule.Settings.Len()+8)
	for _, entry := range rule.Settings.Entries() {
		settings[entry.Name] = entry.Value
	}

	hwActive := policy.HardwareAccelerationEnabled() && types.IsHardwareEncodable(rule.VideoCodec)
	isVideo := rule.Type == types.MediaTypeVideo && rule.VideoCodec != ""

	ep.applyHardwareCeiling(settings, hwActive)
	if isVideo {
		ep.applyQuality(settings, rule, policy)
	}
	ep.applyPreset(settings, policy)
	ep.applyThreads(settings, policy)
	if isVideo && hwActive {
		ep.applyHardware(settings, rule, media, policy)
	}
	ep.applyTonemapping(settings, media, policy, isVideo, hwActive)
	ep.applyDeinterlace(settings, media, policy, isVideo)
	ep.applyAudio(settings, rule, media, policy)
	ep.applyMuxing(settings, media, policy, isVideo)

	plan := types.NewEncodePlan(rule.Container, rule.AudioCodec, rule.VideoCodec,
		types.NewSettings(settings), ruleIndex)

	ep.logger.Debug("Encode plan resolved", "rule", ruleIndex, "container", plan.TargetContainer(),
		"video", plan.TargetVideoCodec(), "audio", plan.TargetAudioCodec(), "settings", plan.Settings().Encode())

	return plan, nil
}

func (ep *EncodePlanner) validate(rule types.TranscodingRule, media *types.MediaDescriptor, policy types.EncodingPolicy) *perrors.PlaybackError {
	const op = "plan"

	if !rule.Type.Valid() {
		return perrors.RuleError(op, "transcoding rule has no media type")
	}
	if rule.Container == "" {
		return perrors.RuleError(op, "transcoding rule has no target container")
	}
	mediaType := media.MediaType()
	if rule.Type != mediaType {
		return perrors.RuleError(op, "%s rule applied to %s media", rule.Type, mediaType)
	}

	switch rule.Type {
	case types.MediaTypeAudio:
		if rule.VideoCodec != "" {
			return perrors.RuleError(op, "audio rule declares video codec %q", rule.VideoCodec)
		}
		for _, name := range rule.Settings.Names() {
			if name.IsVideoOnly() {
				return perrors.RuleError(op, "audio rule carries video setting %s", name)
			}
		}
		if rule.AudioCodec == "" {
			return perrors.RuleError(op, "audio rule has no target audio codec")
		}
	case types.MediaTypeVideo:
		if rule.VideoCodec == "" {
			return perrors.RuleError(op, "video rule has no target video codec")
		}
		if rule.AudioCodec == "" && len(media.AudioStreams()) > 0 {
			return perrors.RuleError(op, "video rule has no target audio codec for media with audio")
		}
	}

	if rule.VideoCodec != "" && !types.IsVideoCodec(rule.VideoCodec) {
		return perrors.CodecError(op, rule.VideoCodec)
	}
	if rule.AudioCodec != "" && !types.IsAudioCodec(rule.AudioCodec) {
		return perrors.CodecError(op, rule.AudioCodec)
	}

	if v, ok := rule.Settings.Get(types.SettingRequireHardwareEncoding); ok {
		if required, _ := v.Bool(); required {
			if !policy.EnableHardwareEncoding {
				return perrors.PolicyError(op, "rule requires hardware encoding but policy disables it")
			}
			if !policy.HardwareAccelerationEnabled() {
				return perrors.PolicyError(op, "rule requires hardware encoding but no accelerator is configured")
			}
			if !types.IsHardwareEncodable(rule.VideoCodec) {
				return perrors.RuleError(op, "rule requires hardware encoding of %q which has no hardware encoder", rule.VideoCodec)
			}
		}
	}
	if rule.VideoCodec == types.CodecHEVC && !policy.AllowHevcEncoding {
		return perrors.PolicyError(op, "rule targets hevc but policy disallows hevc encoding")
	}
	return nil
}

// applyHardwareCeiling drops every hardware-only setting when no hardware
// path is active. Rules never raise this ceiling.
func (ep *EncodePlanner) applyHardwareCeiling(settings resolved, hwActive bool) {
	if !hwActive {
		settings.remove(types.HardwareOnlySettings()...)
	}
}

func (ep *EncodePlanner) applyQuality(settings resolved, rule types.TranscodingRule, policy types.EncodingPolicy) {
	if crf, ok := policy.CRFFor(rule.VideoCodec); ok {
		settings.setDefault(types.SettingQuality, types.IntValue(int64(crf)))
	}
}

func (ep *EncodePlanner) applyPreset(settings resolved, policy types.EncodingPolicy) {
	if policy.EncoderPreset != "" {
		settings.setDefault(types.SettingEncoderPreset, types.StringValue(policy.EncoderPreset))
	}
}

// applyThreads clamps the thread count to the policy limit. An automatic
// policy (-1 or 0) leaves the rule value untouched.
func (ep *EncodePlanner) applyThreads(settings resolved, policy types.EncodingPolicy) {
	limit := int64(policy.EncodingThreadCount)
	if limit <= 0 {
		return
	}
	if v, ok := settings[types.SettingThreadCount]; ok {
		if n, ok := v.Int(); ok && n > 0 && n <= limit {
			return
		}
	}
	settings[types.SettingThreadCount] = types.IntValue(limit)
}

func (ep *EncodePlanner) applyHardware(settings resolved, rule types.TranscodingRule, media *types.MediaDescriptor, policy types.EncodingPolicy) {
	accel := strings.ToLower(policy.HardwareAccelerationType)
	settings[types.SettingHardwareAcceleration] = types.StringValue(accel)

	if (accel == types.HardwareAccelVAAPI || accel == types.HardwareAccelQSV) && policy.VaapiDevice != "" {
		settings.setDefault(types.SettingHardwareDevice, types.StringValue(policy.VaapiDevice))
	}

	lowPower := false
	if accel == types.HardwareAccelQSV || accel == types.HardwareAccelVAAPI {
		switch rule.VideoCodec {
		case types.CodecH264:
			lowPower = policy.EnableIntelLowPowerH264HwEncoder
		case types.CodecHEVC:
			lowPower = policy.EnableIntelLowPowerHevcHwEncoder
		}
	}
	if lowPower {
		settings[types.SettingLowPowerEncoder] = types.BoolValue(true)
	} else {
		settings.remove(types.SettingLowPowerEncoder)
	}

	if accel == types.HardwareAccelNVENC && policy.EnableEnhancedNvdecDecoder {
		settings[types.SettingEnhancedNvdecDecoder] = types.BoolValue(true)
	} else {
		settings.remove(types.SettingEnhancedNvdecDecoder)
	}

	if policy.PreferSystemNativeHwDecoder {
		settings[types.SettingPreferNativeHwDecoder] = types.BoolValue(true)
	} else {
		settings.remove(types.SettingPreferNativeHwDecoder)
	}

	source, ok := media.PrimaryVideo()
	if ok && policy.DecodesInHardware(source.Codec, source.ColorDepth) {
		settings[types.SettingHardwareDecoding] = types.BoolValue(true)
	} else {
		settings.remove(types.SettingHardwareDecoding)
	}
}

// applyTonemapping fills tonemapping values only for HDR sources with the
// corresponding toggle enabled. Otherwise the subset is removed entirely,
// rule-provided values included.
func (ep *EncodePlanner) applyTonemapping(settings resolved, media *types.MediaDescriptor, policy types.EncodingPolicy, isVideo, hwActive bool) {
	hdr := isVideo && media.IsHDR()

	if policy.EnableTonemapping && hdr {
		settings.setDefault(types.SettingTonemapAlgorithm, types.StringValue(policy.TonemappingAlgorithm))
		settings.setDefault(types.SettingTonemapMode, types.StringValue(policy.TonemappingMode))
		settings.setDefault(types.SettingTonemapRange, types.StringValue(policy.TonemappingRange))
		settings.setDefault(types.SettingTonemapDesat, types.FloatValue(policy.TonemappingDesat))
		settings.setDefault(types.SettingTonemapPeak, types.FloatValue(policy.TonemappingPeak))
		settings.setDefault(types.SettingTonemapParam, types.FloatValue(policy.TonemappingParam))
	} else {
		settings.remove(types.TonemapSettings()...)
	}

	if policy.EnableVppTonemapping && hdr && hwActive {
		settings.setDefault(types.SettingVppTonemapBrightness, types.FloatValue(policy.VppTonemappingBrightness))
		settings.setDefault(types.SettingVppTonemapContrast, types.FloatValue(policy.VppTonemappingContrast))
	} else {
		settings.remove(types.VppTonemapSettings()...)
	}
}

func (ep *EncodePlanner) applyDeinterlace(settings resolved, media *types.MediaDescriptor, policy types.EncodingPolicy, isVideo bool) {
	if !policy.DeinterlaceDoubleRate {
		settings.remove(types.SettingDeinterlaceDoubleRate)
	}
	source, ok := media.PrimaryVideo()
	if !isVideo || !ok || !source.IsInterlaced {
		return
	}
	settings.setDefault(types.SettingDeinterlaceMethod, types.StringValue(policy.DeinterlaceMethod))
	if policy.DeinterlaceDoubleRate {
		settings[types.SettingDeinterlaceDoubleRate] = types.BoolValue(true)
	}
}

func (ep *EncodePlanner) applyAudio(settings resolved, rule types.TranscodingRule, media *types.MediaDescriptor, policy types.EncodingPolicy) {
	if policy.EnableAudioVbr && rule.AudioCodec != "" && types.IsVBRCapable(rule.AudioCodec) {
		settings[types.SettingAudioVbr] = types.BoolValue(true)
	} else {
		settings.remove(types.SettingAudioVbr)
	}

	downmix := false
	if v, ok := settings[types.SettingMaxAudioChannels]; ok && rule.AudioCodec != "" {
		if limit, ok := v.Int(); ok && limit > 0 && int64(media.MaxAudioChannels()) > limit {
			downmix = true
		}
	}
	if downmix {
		settings.setDefault(types.SettingDownMixAudioBoost, types.FloatValue(policy.DownMixAudioBoost))
		settings.setDefault(types.SettingDownMixStereoAlgorithm, types.StringValue(policy.DownMixStereoAlgorithm))
	} else {
		settings.remove(types.SettingDownMixAudioBoost, types.SettingDownMixStereoAlgorithm)
	}
}

func (ep *EncodePlanner) applyMuxing(settings resolved, media *types.MediaDescriptor, policy types.EncodingPolicy, isVideo bool) {
	settings.setDefault(types.SettingMaxMuxingQueueSize, types.IntValue(int64(policy.MaxMuxingQueueSize)))

	if policy.EnableThrottling {
		settings.setDefault(types.SettingThrottleDelaySeconds, types.IntValue(int64(policy.ThrottleDelaySeconds)))
	} else {
		settings.remove(types.SettingThrottleDelaySeconds)
	}

	if policy.EnableSubtitleExtraction && len(media.SubtitleStreams()) > 0 {
		settings[types.SettingSubtitleExtraction] = types.BoolValue(true)
	} else {
		settings.remove(types.SettingSubtitleExtraction)
	}

	if isVideo && policy.KeyframeExtractionAllowed(media.Container) {
		settings[types.SettingKeyframeExtraction] = types.BoolValue(true)
	} else {
		settings.remove(types.SettingKeyframeExtraction)
	}

	if policy.EnableFallbackFont && policy.FallbackFontPath != "" {
		settings.setDefault(types.SettingFallbackFont, types.StringValue(policy.FallbackFontPath))
	} else {
		settings.remove(types.SettingFallbackFont)
	}
}
