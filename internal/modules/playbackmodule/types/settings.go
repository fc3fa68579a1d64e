package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	perrors "github.com/mantonx/viewra-playback/internal/modules/playbackmodule/errors"
)

// SettingName identifies a transcoding setting. The declaration order is the
// canonical order used for every serialized form of a settings set.
type SettingName int

const (
	// SettingUnknown is any name this build does not recognize
	SettingUnknown SettingName = iota
	SettingVideoProfile
	SettingVideoLevel
	SettingMaxAudioChannels
	SettingQuality
	SettingEncoderPreset
	SettingThreadCount
	SettingHardwareAcceleration
	SettingRequireHardwareEncoding
	SettingHardwareDevice
	SettingHardwareDecoding
	SettingLowPowerEncoder
	SettingEnhancedNvdecDecoder
	SettingPreferNativeHwDecoder
	SettingTonemapAlgorithm
	SettingTonemapMode
	SettingTonemapRange
	SettingTonemapDesat
	SettingTonemapPeak
	SettingTonemapParam
	SettingVppTonemapBrightness
	SettingVppTonemapContrast
	SettingDeinterlaceMethod
	SettingDeinterlaceDoubleRate
	SettingAudioVbr
	SettingDownMixAudioBoost
	SettingDownMixStereoAlgorithm
	SettingMaxMuxingQueueSize
	SettingThrottleDelaySeconds
	SettingSubtitleExtraction
	SettingKeyframeExtraction
	SettingFallbackFont

	settingCount
)

type settingFlag uint8

const (
	flagVideoOnly settingFlag = 1 << iota
	flagHardwareOnly
	flagTonemap
	flagVppTonemap
)

type settingInfo struct {
	name  string
	kind  ValueKind
	flags settingFlag
}

var settingTable = [settingCount]settingInfo{
	SettingUnknown:                 {"Unknown", KindString, 0},
	SettingVideoProfile:            {"VideoProfile", KindString, flagVideoOnly},
	SettingVideoLevel:              {"VideoLevel", KindString, flagVideoOnly},
	SettingMaxAudioChannels:        {"MaxAudioChannels", KindInt, 0},
	SettingQuality:                 {"Quality", KindInt, flagVideoOnly},
	SettingEncoderPreset:           {"EncoderPreset", KindString, 0},
	SettingThreadCount:             {"ThreadCount", KindInt, 0},
	SettingHardwareAcceleration:    {"HardwareAcceleration", KindString, flagVideoOnly | flagHardwareOnly},
	SettingRequireHardwareEncoding: {"RequireHardwareEncoding", KindBool, flagVideoOnly | flagHardwareOnly},
	SettingHardwareDevice:          {"HardwareDevice", KindString, flagVideoOnly | flagHardwareOnly},
	SettingHardwareDecoding:        {"HardwareDecoding", KindBool, flagVideoOnly | flagHardwareOnly},
	SettingLowPowerEncoder:         {"LowPowerEncoder", KindBool, flagVideoOnly | flagHardwareOnly},
	SettingEnhancedNvdecDecoder:    {"EnhancedNvdecDecoder", KindBool, flagVideoOnly | flagHardwareOnly},
	SettingPreferNativeHwDecoder:   {"PreferNativeHwDecoder", KindBool, flagVideoOnly | flagHardwareOnly},
	SettingTonemapAlgorithm:        {"TonemapAlgorithm", KindString, flagVideoOnly | flagTonemap},
	SettingTonemapMode:             {"TonemapMode", KindString, flagVideoOnly | flagTonemap},
	SettingTonemapRange:            {"TonemapRange", KindString, flagVideoOnly | flagTonemap},
	SettingTonemapDesat:            {"TonemapDesat", KindFloat, flagVideoOnly | flagTonemap},
	SettingTonemapPeak:             {"TonemapPeak", KindFloat, flagVideoOnly | flagTonemap},
	SettingTonemapParam:            {"TonemapParam", KindFloat, flagVideoOnly | flagTonemap},
	SettingVppTonemapBrightness:    {"VppTonemapBrightness", KindFloat, flagVideoOnly | flagHardwareOnly | flagVppTonemap},
	SettingVppTonemapContrast:      {"VppTonemapContrast", KindFloat, flagVideoOnly | flagHardwareOnly | flagVppTonemap},
	SettingDeinterlaceMethod:       {"DeinterlaceMethod", KindString, flagVideoOnly},
	SettingDeinterlaceDoubleRate:   {"DeinterlaceDoubleRate", KindBool, flagVideoOnly},
	SettingAudioVbr:                {"AudioVbr", KindBool, 0},
	SettingDownMixAudioBoost:       {"DownMixAudioBoost", KindFloat, 0},
	SettingDownMixStereoAlgorithm:  {"DownMixStereoAlgorithm", KindString, 0},
	SettingMaxMuxingQueueSize:      {"MaxMuxingQueueSize", KindInt, 0},
	SettingThrottleDelaySeconds:    {"ThrottleDelaySeconds", KindInt, 0},
	SettingSubtitleExtraction:      {"SubtitleExtraction", KindBool, 0},
	SettingKeyframeExtraction:      {"KeyframeExtraction", KindBool, flagVideoOnly},
	SettingFallbackFont:            {"FallbackFont", KindString, 0},
}

var settingsByName = func() map[string]SettingName {
	m := make(map[string]SettingName, settingCount)
	for i := SettingUnknown + 1; i < settingCount; i++ {
		m[strings.ToLower(settingTable[i].name)] = i
	}
	return m
}()

// ParseSettingName resolves a setting name case-insensitively.
// Unrecognized names map to SettingUnknown.
func ParseSettingName(name string) SettingName {
	if n, ok := settingsByName[strings.ToLower(strings.TrimSpace(name))]; ok {
		return n
	}
	return SettingUnknown
}

// AllSettingNames returns every known setting in canonical order.
func AllSettingNames() []SettingName {
	names := make([]SettingName, 0, settingCount-1)
	for i := SettingUnknown + 1; i < settingCount; i++ {
		names = append(names, i)
	}
	return names
}

func (n SettingName) valid() bool {
	return n > SettingUnknown && n < settingCount
}

// String returns the canonical name of the setting.
func (n SettingName) String() string {
	if n < 0 || n >= settingCount {
		return settingTable[SettingUnknown].name
	}
	return settingTable[n].name
}

// Kind returns the value type the setting carries.
func (n SettingName) Kind() ValueKind {
	if !n.valid() {
		return KindString
	}
	return settingTable[n].kind
}

// IsVideoOnly reports whether the setting only makes sense for a video target.
func (n SettingName) IsVideoOnly() bool { return n.valid() && settingTable[n].flags&flagVideoOnly != 0 }

// IsHardwareOnly reports whether the setting only applies to hardware encode or decode paths.
func (n SettingName) IsHardwareOnly() bool {
	return n.valid() && settingTable[n].flags&flagHardwareOnly != 0
}

// IsTonemap reports whether the setting belongs to the software tonemapping subset.
func (n SettingName) IsTonemap() bool { return n.valid() && settingTable[n].flags&flagTonemap != 0 }

// IsVppTonemap reports whether the setting belongs to the VPP tonemapping subset.
func (n SettingName) IsVppTonemap() bool { return n.valid() && settingTable[n].flags&flagVppTonemap != 0 }

// MarshalText encodes the canonical name.
func (n SettingName) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

// UnmarshalText decodes a setting name; unknown names decode to SettingUnknown.
func (n *SettingName) UnmarshalText(text []byte) error {
	*n = ParseSettingName(string(text))
	return nil
}

// settingsWith returns the known names carrying flag, in canonical order.
func settingsWith(flag settingFlag) []SettingName {
	var names []SettingName
	for i := SettingUnknown + 1; i < settingCount; i++ {
		if settingTable[i].flags&flag != 0 {
			names = append(names, i)
		}
	}
	return names
}

// TonemapSettings returns the software tonemapping subset.
func TonemapSettings() []SettingName { return settingsWith(flagTonemap) }

// VppTonemapSettings returns the VPP tonemapping subset.
func VppTonemapSettings() []SettingName { return settingsWith(flagVppTonemap) }

// HardwareOnlySettings returns the settings dropped when hardware encoding is disabled.
func HardwareOnlySettings() []SettingName { return settingsWith(flagHardwareOnly) }

// VideoOnlySettings returns the settings an audio rule must not carry.
func VideoOnlySettings() []SettingName { return settingsWith(flagVideoOnly) }

// ValueKind is the type of a setting value.
type ValueKind int

const (
	KindString ValueKind = iota
	KindInt
	KindFloat
	KindBool
)

func (k ValueKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	default:
		return "string"
	}
}

// Value is a typed setting value.
type Value struct {
	kind ValueKind
	s    string
	i    int64
	f    float64
	b    bool
}

func StringValue(s string) Value { return Value{kind: KindString, s: s} }
func IntValue(i int64) Value     { return Value{kind: KindInt, i: i} }
func FloatValue(f float64) Value { return Value{kind: KindFloat, f: f} }
func BoolValue(b bool) Value     { return Value{kind: KindBool, b: b} }

// ParseValue parses raw into the value type expected by name.
func ParseValue(name SettingName, raw string) (Value, error) {
	raw = strings.TrimSpace(raw)
	switch name.Kind() {
	case KindInt:
		i, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("setting %s expects an integer, got %q", name, raw)
		}
		return IntValue(i), nil
	case KindFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Value{}, fmt.Errorf("setting %s expects a number, got %q", name, raw)
		}
		return FloatValue(f), nil
	case KindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return Value{}, fmt.Errorf("setting %s expects a boolean, got %q", name, raw)
		}
		return BoolValue(b), nil
	default:
		return StringValue(raw), nil
	}
}

func (v Value) Kind() ValueKind { return v.kind }

// Int returns the value as an integer. Float values are truncated.
func (v Value) Int() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.i, true
	case KindFloat:
		return int64(v.f), true
	}
	return 0, false
}

// Float returns the value as a float. Integer values are widened.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

func (v Value) Bool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// String returns the canonical text form of the value.
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return v.s
	}
}

// MarshalJSON emits the value as its native JSON type.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindInt:
		return json.Marshal(v.i)
	case KindFloat:
		return json.Marshal(v.f)
	case KindBool:
		return json.Marshal(v.b)
	default:
		return json.Marshal(v.s)
	}
}

// Setting is one name/value pair of a Settings set.
type Setting struct {
	Name  SettingName
	Value Value
}

// Settings is an immutable set of typed transcoding settings. Names this build
// does not recognize are kept verbatim so they survive a round trip, but they
// never reach an encode plan.
type Settings struct {
	values  map[SettingName]Value
	unknown map[string]string
}

// NewSettings builds a settings set from typed values. SettingUnknown keys are ignored.
func NewSettings(values map[SettingName]Value) Settings {
	s := Settings{values: make(map[SettingName]Value, len(values))}
	for name, v := range values {
		if name.valid() {
			s.values[name] = v
		}
	}
	return s
}

// ParseSettings builds a settings set from raw name/value strings.
func ParseSettings(raw map[string]string) (Settings, error) {
	s := Settings{values: make(map[SettingName]Value, len(raw))}
	for key, rawValue := range raw {
		name := ParseSettingName(key)
		if name == SettingUnknown {
			if s.unknown == nil {
				s.unknown = make(map[string]string)
			}
			s.unknown[key] = rawValue
			continue
		}
		v, err := ParseValue(name, rawValue)
		if err != nil {
			return Settings{}, perrors.RuleError("parse_settings", "%v", err)
		}
		s.values[name] = v
	}
	return s, nil
}

// Get returns the value for name.
func (s Settings) Get(name SettingName) (Value, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Has reports whether name is set.
func (s Settings) Has(name SettingName) bool {
	_, ok := s.values[name]
	return ok
}

// Len returns the number of known settings.
func (s Settings) Len() int { return len(s.values) }

// Names returns the set names in canonical order.
func (s Settings) Names() []SettingName {
	names := make([]SettingName, 0, len(s.values))
	for name := range s.values {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Entries returns the known settings in canonical order.
func (s Settings) Entries() []Setting {
	names := s.Names()
	entries := make([]Setting, len(names))
	for i, name := range names {
		entries[i] = Setting{Name: name, Value: s.values[name]}
	}
	return entries
}

// Unknown returns the unrecognized names in sorted order.
func (s Settings) Unknown() []string {
	names := make([]string, 0, len(s.unknown))
	for name := range s.unknown {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// With returns a copy of s with name set to v.
func (s Settings) With(name SettingName, v Value) Settings {
	if !name.valid() {
		return s
	}
	out := s.clone()
	out.values[name] = v
	return out
}

// Without returns a copy of s with the given names removed.
func (s Settings) Without(names ...SettingName) Settings {
	out := s.clone()
	for _, name := range names {
		delete(out.values, name)
	}
	return out
}

// Map returns the known settings keyed by canonical name.
func (s Settings) Map() map[string]string {
	m := make(map[string]string, len(s.values))
	for name, v := range s.values {
		m[name.String()] = v.String()
	}
	return m
}

// Raw returns every setting as name/value strings, unrecognized names
// included verbatim.
func (s Settings) Raw() map[string]string {
	m := s.Map()
	for name, v := range s.unknown {
		m[name] = v
	}
	return m
}

// Equal reports whether both sets hold the same known settings.
func (s Settings) Equal(other Settings) bool {
	if len(s.values) != len(other.values) {
		return false
	}
	for name, v := range s.values {
		if ov, ok := other.values[name]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Encode returns the canonical "Name=value;..." form of the known settings.
func (s Settings) Encode() string {
	var b strings.Builder
	for i, e := range s.Entries() {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(e.Name.String())
		b.WriteByte('=')
		b.WriteString(e.Value.String())
	}
	return b.String()
}

func (s Settings) String() string { return s.Encode() }

// MarshalJSON writes the known settings as an object in canonical order.
func (s Settings) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range s.Entries() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(e.Name.String())
		buf.Write(key)
		buf.WriteByte(':')
		val, err := e.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s Settings) clone() Settings {
	out := Settings{values: make(map[SettingName]Value, len(s.values)+1)}
	for k, v := range s.values {
		out.values[k] = v
	}
	if len(s.unknown) > 0 {
		out.unknown = make(map[string]string, len(s.unknown))
		for k, v := range s.unknown {
			out.unknown[k] = v
		}
	}
	return out
}
