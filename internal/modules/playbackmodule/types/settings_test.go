package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSettingName(t *testing.T) {
	tests := []struct {
		input    string
		expected SettingName
	}{
		{"VideoProfile", SettingVideoProfile},
		{"videoprofile", SettingVideoProfile},
		{" TonemapPeak ", SettingTonemapPeak},
		{"MaxMuxingQueueSize", SettingMaxMuxingQueueSize},
		{"NotARealSetting", SettingUnknown},
		{"", SettingUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseSettingName(tt.input))
		})
	}
}

func TestSettingNameRoundTrip(t *testing.T) {
	for _, name := range AllSettingNames() {
		assert.Equal(t, name, ParseSettingName(name.String()), name.String())
	}
}

func TestSettingSubsets(t *testing.T) {
	assert.Equal(t, []SettingName{
		SettingTonemapAlgorithm, SettingTonemapMode, SettingTonemapRange,
		SettingTonemapDesat, SettingTonemapPeak, SettingTonemapParam,
	}, TonemapSettings())
	assert.Equal(t, []SettingName{SettingVppTonemapBrightness, SettingVppTonemapContrast}, VppTonemapSettings())

	for _, name := range HardwareOnlySettings() {
		assert.True(t, name.IsHardwareOnly())
	}
	assert.Contains(t, HardwareOnlySettings(), SettingLowPowerEncoder)
	assert.Contains(t, HardwareOnlySettings(), SettingEnhancedNvdecDecoder)
	assert.NotContains(t, HardwareOnlySettings(), SettingQuality)
	assert.Contains(t, VideoOnlySettings(), SettingVideoProfile)
	assert.NotContains(t, VideoOnlySettings(), SettingMaxAudioChannels)
}

func TestParseValue(t *testing.T) {
	v, err := ParseValue(SettingQuality, "23")
	require.NoError(t, err)
	i, ok := v.Int()
	assert.True(t, ok)
	assert.Equal(t, int64(23), i)

	v, err = ParseValue(SettingTonemapPeak, "100.5")
	require.NoError(t, err)
	assert.Equal(t, "100.5", v.String())

	v, err = ParseValue(SettingAudioVbr, "true")
	require.NoError(t, err)
	b, ok := v.Bool()
	assert.True(t, ok)
	assert.True(t, b)

	_, err = ParseValue(SettingQuality, "high")
	assert.Error(t, err)

	v, err = ParseValue(SettingVideoProfile, " baseline ")
	require.NoError(t, err)
	assert.Equal(t, "baseline", v.String())
}

func TestSettingsImmutability(t *testing.T) {
	base := NewSettings(map[SettingName]Value{
		SettingVideoProfile: StringValue("baseline"),
	})

	withQuality := base.With(SettingQuality, IntValue(23))
	assert.False(t, base.Has(SettingQuality))
	assert.True(t, withQuality.Has(SettingQuality))

	without := withQuality.Without(SettingVideoProfile)
	assert.True(t, withQuality.Has(SettingVideoProfile))
	assert.False(t, without.Has(SettingVideoProfile))

	unchanged := base.With(SettingUnknown, StringValue("x"))
	assert.Equal(t, 1, unchanged.Len())
}

func TestSettingsCanonicalOrder(t *testing.T) {
	s := NewSettings(map[SettingName]Value{
		SettingMaxMuxingQueueSize: IntValue(2048),
		SettingQuality:            IntValue(23),
		SettingVideoProfile:       StringValue("baseline"),
		SettingTonemapPeak:        FloatValue(100),
	})

	assert.Equal(t, "VideoProfile=baseline;Quality=23;TonemapPeak=100;MaxMuxingQueueSize=2048", s.Encode())

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `{"VideoProfile":"baseline","Quality":23,"TonemapPeak":100,"MaxMuxingQueueSize":2048}`, string(data))
}

func TestParseSettingsKeepsUnknown(t *testing.T) {
	s, err := ParseSettings(map[string]string{
		"VideoProfile": "baseline",
		"FancyFeature": "on",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, []string{"FancyFeature"}, s.Unknown())
	assert.Equal(t, "VideoProfile=baseline", s.Encode())
	assert.Equal(t, map[string]string{"VideoProfile": "baseline", "FancyFeature": "on"}, s.Raw())
	assert.Equal(t, []string{"FancyFeature"}, s.Without(SettingVideoProfile).Unknown())

	_, err = ParseSettings(map[string]string{"Quality": "best"})
	assert.Error(t, err)
}

func TestSettingsEqual(t *testing.T) {
	a := NewSettings(map[SettingName]Value{SettingQuality: IntValue(23)})
	b := NewSettings(map[SettingName]Value{SettingQuality: IntValue(23)})
	c := NewSettings(map[SettingName]Value{SettingQuality: IntValue(28)})

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(Settings{}))
}
