package types

import (
	"sort"
	"strings"
)

// Video codec identifiers recognized by the planner.
const (
	CodecH264       = "h264"
	CodecHEVC       = "hevc"
	CodecVP8        = "vp8"
	CodecVP9        = "vp9"
	CodecAV1        = "av1"
	CodecMPEG2Video = "mpeg2video"
	CodecMPEG4      = "mpeg4"
	CodecVC1        = "vc1"
	CodecTheora     = "theora"
	CodecMJPEG      = "mjpeg"
)

// Audio codec identifiers recognized by the planner.
const (
	CodecAAC    = "aac"
	CodecMP3    = "mp3"
	CodecAC3    = "ac3"
	CodecEAC3   = "eac3"
	CodecOpus   = "opus"
	CodecVorbis = "vorbis"
	CodecFLAC   = "flac"
	CodecALAC   = "alac"
	CodecPCM    = "pcm"
	CodecWMAV2  = "wmav2"
	CodecDTS    = "dts"
	CodecTrueHD = "truehd"
	CodecMP2    = "mp2"
)

var videoCodecs = map[string]bool{
	CodecH264: true, CodecHEVC: true, CodecVP8: true, CodecVP9: true, CodecAV1: true,
	CodecMPEG2Video: true, CodecMPEG4: true, CodecVC1: true, CodecTheora: true, CodecMJPEG: true,
}

var audioCodecs = map[string]bool{
	CodecAAC: true, CodecMP3: true, CodecAC3: true, CodecEAC3: true, CodecOpus: true,
	CodecVorbis: true, CodecFLAC: true, CodecALAC: true, CodecPCM: true, CodecWMAV2: true,
	CodecDTS: true, CodecTrueHD: true, CodecMP2: true,
}

// Codecs with a hardware encode path on the supported accelerators.
var hardwareEncodable = map[string]bool{CodecH264: true, CodecHEVC: true, CodecAV1: true}

// Audio codecs whose encoders accept a VBR mode.
var vbrCapable = map[string]bool{CodecAAC: true, CodecMP3: true, CodecOpus: true, CodecVorbis: true}

var imageContainers = map[string]bool{
	"jpeg": true, "png": true, "gif": true, "webp": true, "bmp": true,
}

var codecAliases = map[string]string{
	"h265":       CodecHEVC,
	"x265":       CodecHEVC,
	"hvc1":       CodecHEVC,
	"avc":        CodecH264,
	"avc1":       CodecH264,
	"x264":       CodecH264,
	"mpeg2":      CodecMPEG2Video,
	"wmv3":       CodecVC1,
	"dca":        CodecDTS,
	"wma":        CodecWMAV2,
	"libopus":    CodecOpus,
	"libvorbis":  CodecVorbis,
	"libmp3lame": CodecMP3,
}

// Handle container aliases
var containerAliases = map[string]string{
	"matroska": "mkv",
	"mpeg4":    "mp4",
	"m4v":      "mp4",
	"mpegts":   "ts",
	"jpg":      "jpeg",
}

// NormalizeCodec lower-cases, trims and canonicalizes a codec identifier.
func NormalizeCodec(codec string) string {
	c := strings.ToLower(strings.TrimSpace(codec))
	if alias, ok := codecAliases[c]; ok {
		return alias
	}
	if strings.HasPrefix(c, "pcm_") {
		return CodecPCM
	}
	return c
}

// NormalizeContainer lower-cases, trims and canonicalizes a container name.
// A leading dot is dropped so file extensions can be passed directly.
func NormalizeContainer(container string) string {
	c := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(container)), ".")
	if alias, ok := containerAliases[c]; ok {
		return alias
	}
	return c
}

// IsVideoCodec reports whether codec is a recognized video codec.
func IsVideoCodec(codec string) bool {
	return videoCodecs[NormalizeCodec(codec)]
}

// IsAudioCodec reports whether codec is a recognized audio codec.
func IsAudioCodec(codec string) bool {
	return audioCodecs[NormalizeCodec(codec)]
}

// IsHardwareEncodable reports whether codec can be encoded by a hardware accelerator.
func IsHardwareEncodable(codec string) bool {
	return hardwareEncodable[NormalizeCodec(codec)]
}

// IsVBRCapable reports whether the audio encoder for codec supports VBR.
func IsVBRCapable(codec string) bool {
	return vbrCapable[NormalizeCodec(codec)]
}

// IsImageContainer reports whether container is a still image format.
func IsImageContainer(container string) bool {
	return imageContainers[NormalizeContainer(container)]
}

// KnownVideoCodecs returns the recognized video codecs in sorted order.
func KnownVideoCodecs() []string {
	return sortedKeys(videoCodecs)
}

// KnownAudioCodecs returns the recognized audio codecs in sorted order.
func KnownAudioCodecs() []string {
	return sortedKeys(audioCodecs)
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
