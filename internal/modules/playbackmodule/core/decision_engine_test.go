package core

import (
	"errors"
	"sync"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/mantonx/viewra-playback/internal/modules/playbackmodule/errors"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/types"
)

func TestDecisionEngine_ScenarioDirectPlay(t *testing.T) {
	engine := NewDecisionEngine(hclog.NewNullLogger())
	profile := newProfile(t, []types.DirectPlayRule{
		{Containers: containers(t, "avi,mp4"), Type: types.MediaTypeVideo},
	}, nil)

	decision, err := engine.Decide(&types.MediaDescriptor{Container: "avi", Type: types.MediaTypeVideo}, profile, types.DefaultEncodingPolicy())
	require.NoError(t, err)
	assert.Equal(t, types.DecisionDirectPlay, decision.Kind)
	assert.Equal(t, 0, decision.RuleIndex)
	assert.Nil(t, decision.Plan)
	assert.True(t, decision.IsPlayable())
}

func TestDecisionEngine_ScenarioTranscode(t *testing.T) {
	engine := NewDecisionEngine(hclog.NewNullLogger())
	profile := newProfile(t, nil, []types.TranscodingRule{
		{Container: "ts", Type: types.MediaTypeVideo, VideoCodec: "h264", AudioCodec: "aac",
			Settings: settings(t, map[string]string{"VideoProfile": "baseline"})},
	})
	media := &types.MediaDescriptor{Container: "mkv", Type: types.MediaTypeVideo, Streams: []types.StreamDescriptor{
		{Type: types.StreamTypeVideo, Codec: "hevc"},
	}}

	decision, err := engine.Decide(media, profile, types.DefaultEncodingPolicy())
	require.NoError(t, err)
	require.Equal(t, types.DecisionTranscode, decision.Kind)
	require.NotNil(t, decision.Plan)

	resolved := decision.Plan.Settings().Map()
	assert.Equal(t, "baseline", resolved["VideoProfile"])
	assert.Equal(t, "23", resolved["Quality"])
	assert.Equal(t, "ts", decision.Container)
	assert.Equal(t, 0, decision.RuleIndex)
}

func TestDecisionEngine_ScenarioUnsupported(t *testing.T) {
	engine := NewDecisionEngine(hclog.NewNullLogger())
	profile := newProfile(t,
		[]types.DirectPlayRule{{Containers: containers(t, "mp3"), Type: types.MediaTypeAudio}},
		[]types.TranscodingRule{{Container: "mp3", Type: types.MediaTypeAudio, AudioCodec: "mp3"}},
	)

	decision, err := engine.Decide(hevcMKV(), profile, types.DefaultEncodingPolicy())
	require.NoError(t, err)
	assert.Equal(t, types.DecisionUnsupported, decision.Kind)
	assert.False(t, decision.IsPlayable())
	assert.Contains(t, decision.Reason, "mkv")
	assert.Contains(t, decision.Reason, "Video")
	assert.Contains(t, decision.Reason, "Test Device")
}

func TestDecisionEngine_ScenarioTonemappingDisabled(t *testing.T) {
	engine := NewDecisionEngine(hclog.NewNullLogger())
	profile := newProfile(t, nil, []types.TranscodingRule{
		{Container: "mp4", Type: types.MediaTypeVideo, VideoCodec: "h264", AudioCodec: "aac",
			Settings: settings(t, map[string]string{
				"TonemapAlgorithm": "reinhard",
				"TonemapMode":      "max",
				"TonemapRange":     "tv",
				"TonemapDesat":     "0.5",
				"TonemapPeak":      "1000",
				"TonemapParam":     "1",
			})},
	})
	media := hevcMKV()
	media.Streams[0].IsHDR = true

	policy := types.DefaultEncodingPolicy()
	policy.EnableTonemapping = false

	decision, err := engine.Decide(media, profile, policy)
	require.NoError(t, err)
	require.Equal(t, types.DecisionTranscode, decision.Kind)
	for _, name := range types.TonemapSettings() {
		assert.False(t, decision.Plan.Settings().Has(name), "%s should be absent", name)
	}
}

func TestDecisionEngine_UnsupportedCodecBecomesDecision(t *testing.T) {
	engine := NewDecisionEngine(hclog.NewNullLogger())
	profile := newProfile(t, nil, []types.TranscodingRule{
		{Container: "mov", Type: types.MediaTypeVideo, VideoCodec: "prores", AudioCodec: "pcm"},
	})

	decision, err := engine.Decide(hevcMKV(), profile, types.DefaultEncodingPolicy())
	require.NoError(t, err)
	assert.Equal(t, types.DecisionUnsupported, decision.Kind)
	assert.Contains(t, decision.Reason, "prores")
}

func TestDecisionEngine_NoContainer(t *testing.T) {
	engine := NewDecisionEngine(hclog.NewNullLogger())

	decision, err := engine.Decide(&types.MediaDescriptor{Type: types.MediaTypeVideo}, genericProfile(t), types.DefaultEncodingPolicy())
	require.NoError(t, err)
	assert.Equal(t, types.DecisionUnsupported, decision.Kind)
	assert.Contains(t, decision.Reason, "unsupported container")
}

func TestDecisionEngine_ConfigurationErrors(t *testing.T) {
	engine := NewDecisionEngine(hclog.NewNullLogger())
	profile := newProfile(t, nil, []types.TranscodingRule{
		{Container: "mkv", Type: types.MediaTypeVideo, VideoCodec: "hevc", AudioCodec: "aac"},
	})

	decision, err := engine.Decide(hevcMKV(), profile, types.DefaultEncodingPolicy())
	require.Error(t, err)
	assert.Nil(t, decision)
	assert.True(t, errors.Is(err, perrors.ErrPolicyConflict))
	assert.True(t, perrors.IsConfigurationError(err))

	var pErr *perrors.PlaybackError
	require.True(t, errors.As(err, &pErr))
	assert.Equal(t, "Test Device", pErr.Profile)
	assert.Equal(t, 0, pErr.RuleIndex)
	assert.Equal(t, "mkv", pErr.Details["container"])

	_, err = engine.Decide(nil, profile, types.DefaultEncodingPolicy())
	assert.True(t, errors.Is(err, perrors.ErrInvalidInput))
	_, err = engine.Decide(hevcMKV(), nil, types.DefaultEncodingPolicy())
	assert.True(t, errors.Is(err, perrors.ErrInvalidInput))
}

func TestDecisionEngine_DirectStreamGatedByPolicy(t *testing.T) {
	engine := NewDecisionEngine(hclog.NewNullLogger())
	profile := newProfile(t,
		[]types.DirectPlayRule{{Containers: containers(t, "mp4"), Type: types.MediaTypeVideo,
			VideoCodecs: codecs(t, "h264"), AudioCodecs: codecs(t, "aac")}},
		[]types.TranscodingRule{{Container: "ts", Type: types.MediaTypeVideo, VideoCodec: "h264", AudioCodec: "aac"}},
	)
	media := &types.MediaDescriptor{Container: "mkv", Streams: []types.StreamDescriptor{
		{Type: types.StreamTypeVideo, Codec: "h264"},
		{Type: types.StreamTypeAudio, Codec: "aac"},
	}}

	decision, err := engine.Decide(media, profile, types.DefaultEncodingPolicy())
	require.NoError(t, err)
	assert.Equal(t, types.DecisionDirectStream, decision.Kind)
	assert.Equal(t, "mp4", decision.Container)
	assert.Nil(t, decision.Plan)

	policy := types.DefaultEncodingPolicy()
	policy.EnableDirectStream = false
	decision, err = engine.Decide(media, profile, policy)
	require.NoError(t, err)
	assert.Equal(t, types.DecisionTranscode, decision.Kind)
}

func TestDecisionEngine_Evaluate(t *testing.T) {
	engine := NewDecisionEngine(hclog.NewNullLogger())

	eval, err := engine.Evaluate(hevcMKV(), genericProfile(t), types.DefaultEncodingPolicy())
	require.NoError(t, err)
	assert.Equal(t, types.DecisionTranscode, eval.Decision.Kind)
	assert.Contains(t, eval.Decision.Reason, "container 'mkv' not in avi,mp4")

	var phases []MatchPhase
	for _, hit := range eval.Trace {
		phases = append(phases, hit.Phase)
	}
	assert.Equal(t, []MatchPhase{
		PhaseDirectPlay, PhaseDirectPlay,
		PhaseDirectStream, PhaseDirectStream,
		PhaseTranscoding, PhaseTranscoding,
	}, phases)
}

func TestDecisionEngine_DecideAll(t *testing.T) {
	engine := NewDecisionEngine(hclog.NewNullLogger())
	audioOnly := newProfile(t, nil, []types.TranscodingRule{
		{Container: "mp3", Type: types.MediaTypeAudio, AudioCodec: "mp3"},
	})
	broken := newProfile(t, nil, []types.TranscodingRule{
		{Container: "mkv", Type: types.MediaTypeVideo, VideoCodec: "hevc", AudioCodec: "aac"},
	})

	decision, err := engine.DecideAll(hevcMKV(), []*types.CapabilityProfile{audioOnly, broken, genericProfile(t)}, types.DefaultEncodingPolicy())
	require.NoError(t, err)
	assert.Equal(t, types.DecisionTranscode, decision.Kind)

	decision, err = engine.DecideAll(hevcMKV(), []*types.CapabilityProfile{audioOnly}, types.DefaultEncodingPolicy())
	require.NoError(t, err)
	assert.Equal(t, types.DecisionUnsupported, decision.Kind)

	_, err = engine.DecideAll(hevcMKV(), []*types.CapabilityProfile{broken}, types.DefaultEncodingPolicy())
	assert.True(t, errors.Is(err, perrors.ErrPolicyConflict))

	_, err = engine.DecideAll(hevcMKV(), nil, types.DefaultEncodingPolicy())
	assert.True(t, errors.Is(err, perrors.ErrInvalidInput))
}

func TestDecisionEngine_Concurrent(t *testing.T) {
	engine := NewDecisionEngine(hclog.NewNullLogger())
	profile := genericProfile(t)
	policy := types.DefaultEncodingPolicy()

	expected, err := engine.Decide(hevcMKV(), profile, policy)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*types.PlaybackDecision, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = engine.Decide(hevcMKV(), profile, policy.Clone())
		}(i)
	}
	wg.Wait()

	for _, decision := range results {
		require.NotNil(t, decision)
		assert.Equal(t, expected.Kind, decision.Kind)
		assert.Equal(t, expected.Plan.CacheKey(), decision.Plan.CacheKey())
	}
}
