package types

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// Hardware acceleration types understood by the planner.
const (
	HardwareAccelNone         = "none"
	HardwareAccelAuto         = "auto"
	HardwareAccelAMF          = "amf"
	HardwareAccelQSV          = "qsv"
	HardwareAccelNVENC        = "nvenc"
	HardwareAccelVAAPI        = "vaapi"
	HardwareAccelVideoToolbox = "videotoolbox"
	HardwareAccelV4L2M2M      = "v4l2m2m"
	HardwareAccelRKMPP        = "rkmpp"
)

// EncodingPolicy holds the server-wide encoding constraints and defaults.
// The core receives it by value; callers hand over a Clone of any live copy.
type EncodingPolicy struct {
	EncodingThreadCount int    `yaml:"encoding_thread_count" json:"encoding_thread_count" env:"VIEWRA_ENCODING_THREADS" validate:"gte=-1"`
	TranscodingTempPath string `yaml:"transcoding_temp_path" json:"transcoding_temp_path" env:"VIEWRA_TRANSCODING_TEMP_PATH"`
	FallbackFontPath    string `yaml:"fallback_font_path" json:"fallback_font_path"`
	EnableFallbackFont  bool   `yaml:"enable_fallback_font" json:"enable_fallback_font"`

	EnableAudioVbr         bool    `yaml:"enable_audio_vbr" json:"enable_audio_vbr"`
	DownMixAudioBoost      float64 `yaml:"downmix_audio_boost" json:"downmix_audio_boost" validate:"gte=0"`
	DownMixStereoAlgorithm string  `yaml:"downmix_stereo_algorithm" json:"downmix_stereo_algorithm" validate:"oneof=None Dave750 NightmodeDialogue Rfc7845 Ac4"`

	MaxMuxingQueueSize   int  `yaml:"max_muxing_queue_size" json:"max_muxing_queue_size" validate:"gt=0"`
	EnableThrottling     bool `yaml:"enable_throttling" json:"enable_throttling" env:"VIEWRA_ENABLE_THROTTLING"`
	ThrottleDelaySeconds int  `yaml:"throttle_delay_seconds" json:"throttle_delay_seconds" validate:"gte=0"`

	HardwareAccelerationType string `yaml:"hardware_acceleration_type" json:"hardware_acceleration_type" env:"VIEWRA_HWACCEL" validate:"omitempty,oneof=none auto amf qsv nvenc vaapi videotoolbox v4l2m2m rkmpp"`
	EncoderAppPath           string `yaml:"encoder_app_path" json:"encoder_app_path" env:"VIEWRA_FFMPEG_PATH"`
	EncoderAppPathDisplay    string `yaml:"encoder_app_path_display" json:"encoder_app_path_display"`
	VaapiDevice              string `yaml:"vaapi_device" json:"vaapi_device" env:"VIEWRA_VAAPI_DEVICE"`

	EnableTonemapping        bool    `yaml:"enable_tonemapping" json:"enable_tonemapping"`
	EnableVppTonemapping     bool    `yaml:"enable_vpp_tonemapping" json:"enable_vpp_tonemapping"`
	TonemappingAlgorithm     string  `yaml:"tonemapping_algorithm" json:"tonemapping_algorithm" validate:"oneof=none clip linear gamma reinhard hable mobius bt2390"`
	TonemappingMode          string  `yaml:"tonemapping_mode" json:"tonemapping_mode" validate:"oneof=auto max rgb lum itp"`
	TonemappingRange         string  `yaml:"tonemapping_range" json:"tonemapping_range" validate:"oneof=auto tv pc"`
	TonemappingDesat         float64 `yaml:"tonemapping_desat" json:"tonemapping_desat" validate:"gte=0"`
	TonemappingPeak          float64 `yaml:"tonemapping_peak" json:"tonemapping_peak" validate:"gte=0"`
	TonemappingParam         float64 `yaml:"tonemapping_param" json:"tonemapping_param"`
	VppTonemappingBrightness float64 `yaml:"vpp_tonemapping_brightness" json:"vpp_tonemapping_brightness" validate:"gte=0,lte=100"`
	VppTonemappingContrast   float64 `yaml:"vpp_tonemapping_contrast" json:"vpp_tonemapping_contrast" validate:"gte=0,lte=10"`

	H264Crf int `yaml:"h264_crf" json:"h264_crf" env:"VIEWRA_H264_CRF" validate:"min=0,max=51"`
	H265Crf int `yaml:"h265_crf" json:"h265_crf" env:"VIEWRA_H265_CRF" validate:"min=0,max=51"`

	EncoderPreset string `yaml:"encoder_preset" json:"encoder_preset" validate:"omitempty,oneof=ultrafast superfast veryfast faster fast medium slow slower veryslow"`

	DeinterlaceDoubleRate bool   `yaml:"deinterlace_double_rate" json:"deinterlace_double_rate"`
	DeinterlaceMethod     string `yaml:"deinterlace_method" json:"deinterlace_method" validate:"oneof=yadif bwdif"`

	EnableDecodingColorDepth10Hevc   bool `yaml:"enable_decoding_color_depth_10_hevc" json:"enable_decoding_color_depth_10_hevc"`
	EnableDecodingColorDepth10Vp9    bool `yaml:"enable_decoding_color_depth_10_vp9" json:"enable_decoding_color_depth_10_vp9"`
	EnableEnhancedNvdecDecoder       bool `yaml:"enable_enhanced_nvdec_decoder" json:"enable_enhanced_nvdec_decoder"`
	PreferSystemNativeHwDecoder      bool `yaml:"prefer_system_native_hw_decoder" json:"prefer_system_native_hw_decoder"`
	EnableIntelLowPowerH264HwEncoder bool `yaml:"enable_intel_low_power_h264_hw_encoder" json:"enable_intel_low_power_h264_hw_encoder"`
	EnableIntelLowPowerHevcHwEncoder bool `yaml:"enable_intel_low_power_hevc_hw_encoder" json:"enable_intel_low_power_hevc_hw_encoder"`
	EnableHardwareEncoding           bool `yaml:"enable_hardware_encoding" json:"enable_hardware_encoding" env:"VIEWRA_ENABLE_HW_ENCODING"`
	AllowHevcEncoding                bool `yaml:"allow_hevc_encoding" json:"allow_hevc_encoding" env:"VIEWRA_ALLOW_HEVC_ENCODING"`
	EnableSubtitleExtraction         bool `yaml:"enable_subtitle_extraction" json:"enable_subtitle_extraction"`

	// EnableDirectStream allows serving compatible streams in another container without re-encoding
	EnableDirectStream bool `yaml:"enable_direct_stream" json:"enable_direct_stream" env:"VIEWRA_ENABLE_DIRECT_STREAM"`

	HardwareDecodingCodecs                                   []string `yaml:"hardware_decoding_codecs" json:"hardware_decoding_codecs" env:"VIEWRA_HW_DECODING_CODECS"`
	AllowOnDemandMetadataBasedKeyframeExtractionForExtensions []string `yaml:"keyframe_extraction_extensions" json:"keyframe_extraction_extensions"`
}

// DefaultEncodingPolicy returns the policy with every documented default applied.
func DefaultEncodingPolicy() EncodingPolicy {
	return EncodingPolicy{
		EncodingThreadCount:      -1,
		EnableFallbackFont:       false,
		EnableAudioVbr:           false,
		DownMixAudioBoost:        2,
		DownMixStereoAlgorithm:   "None",
		MaxMuxingQueueSize:       2048,
		EnableThrottling:         false,
		ThrottleDelaySeconds:     180,
		VaapiDevice:              "/dev/dri/renderD128",
		EnableTonemapping:        false,
		EnableVppTonemapping:     false,
		TonemappingAlgorithm:     "bt2390",
		TonemappingMode:          "auto",
		TonemappingRange:         "auto",
		TonemappingDesat:         0,
		TonemappingPeak:          100,
		TonemappingParam:         0,
		VppTonemappingBrightness: 16,
		VppTonemappingContrast:   1,
		H264Crf:                  23,
		H265Crf:                  28,
		DeinterlaceDoubleRate:    false,
		DeinterlaceMethod:        "yadif",

		EnableDecodingColorDepth10Hevc:   true,
		EnableDecodingColorDepth10Vp9:    true,
		EnableEnhancedNvdecDecoder:       true,
		PreferSystemNativeHwDecoder:      true,
		EnableIntelLowPowerH264HwEncoder: false,
		EnableIntelLowPowerHevcHwEncoder: false,
		EnableHardwareEncoding:           true,
		AllowHevcEncoding:                false,
		EnableSubtitleExtraction:         true,
		EnableDirectStream:               true,

		HardwareDecodingCodecs: []string{"h264", "vc1"},
		AllowOnDemandMetadataBasedKeyframeExtractionForExtensions: []string{"mkv"},
	}
}

// Clone returns a deep copy safe to hand to a decision call.
func (p EncodingPolicy) Clone() EncodingPolicy {
	p.HardwareDecodingCodecs = append([]string(nil), p.HardwareDecodingCodecs...)
	p.AllowOnDemandMetadataBasedKeyframeExtractionForExtensions = append([]string(nil), p.AllowOnDemandMetadataBasedKeyframeExtractionForExtensions...)
	return p
}

var policyValidator = validator.New()

// Validate checks value ranges and enumerations.
func (p EncodingPolicy) Validate() error {
	return policyValidator.Struct(p)
}

// HardwareAccelerationEnabled reports whether a concrete accelerator is configured
// and hardware encoding is allowed.
func (p EncodingPolicy) HardwareAccelerationEnabled() bool {
	if !p.EnableHardwareEncoding {
		return false
	}
	t := strings.ToLower(p.HardwareAccelerationType)
	return t != "" && t != HardwareAccelNone && t != HardwareAccelAuto
}

// CRFFor returns the policy quality target for codec, if it has one.
func (p EncodingPolicy) CRFFor(codec string) (int, bool) {
	switch NormalizeCodec(codec) {
	case CodecH264:
		return p.H264Crf, true
	case CodecHEVC:
		return p.H265Crf, true
	}
	return 0, false
}

// DecodesInHardware reports whether the source codec is eligible for hardware decode.
func (p EncodingPolicy) DecodesInHardware(codec string, colorDepth int) bool {
	codec = NormalizeCodec(codec)
	listed := false
	for _, c := range p.HardwareDecodingCodecs {
		if NormalizeCodec(c) == codec {
			listed = true
			break
		}
	}
	if !listed {
		return false
	}
	if colorDepth > 8 {
		switch codec {
		case CodecHEVC:
			return p.EnableDecodingColorDepth10Hevc
		case CodecVP9:
			return p.EnableDecodingColorDepth10Vp9
		}
	}
	return true
}

// KeyframeExtractionAllowed reports whether the container extension is on the allow-list.
func (p EncodingPolicy) KeyframeExtractionAllowed(container string) bool {
	container = NormalizeContainer(container)
	for _, ext := range p.AllowOnDemandMetadataBasedKeyframeExtractionForExtensions {
		if NormalizeContainer(ext) == container {
			return true
		}
	}
	return false
}
