package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/core/repository"
	perrors "github.com/mantonx/viewra-playback/internal/modules/playbackmodule/errors"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/models"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/profiles"
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/types"
)

type staticPolicy struct {
	policy types.EncodingPolicy
}

func (p staticPolicy) Policy() types.EncodingPolicy { return p.policy.Clone() }

type mockAnalyzer struct {
	mock.Mock
}

func (m *mockAnalyzer) Analyze(ctx context.Context, path string) (*types.MediaDescriptor, error) {
	args := m.Called(ctx, path)
	media, _ := args.Get(0).(*types.MediaDescriptor)
	return media, args.Error(1)
}

type mockHistory struct {
	mock.Mock
}

func (m *mockHistory) Create(ctx context.Context, record *models.DecisionRecord) error {
	return m.Called(ctx, record).Error(0)
}

func (m *mockHistory) List(ctx context.Context, filter repository.DecisionFilter) ([]*models.DecisionRecord, error) {
	args := m.Called(ctx, filter)
	records, _ := args.Get(0).([]*models.DecisionRecord)
	return records, args.Error(1)
}

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) ObserveDecision(decision *types.PlaybackDecision, elapsed time.Duration) {
	m.Called(decision.Kind)
}

func (m *mockRecorder) ObserveError(err error) {
	m.Called(perrors.GetType(err))
}

func (m *mockRecorder) SetProfilesLoaded(n int) {
	m.Called(n)
}

type autoResolver struct{}

func (autoResolver) ResolvePolicy(ctx context.Context, policy types.EncodingPolicy) types.EncodingPolicy {
	if policy.HardwareAccelerationType == types.HardwareAccelAuto {
		policy.HardwareAccelerationType = types.HardwareAccelVAAPI
	}
	return policy
}

func hevcMovie() *types.MediaDescriptor {
	return &types.MediaDescriptor{
		Path:      "/media/movie.mkv",
		Container: "mkv",
		Streams: []types.StreamDescriptor{
			{Type: types.StreamTypeVideo, Codec: "hevc", ColorDepth: 10},
			{Type: types.StreamTypeAudio, Codec: "eac3", Channels: 6},
		},
	}
}

func rokuProfile(t *testing.T) *types.CapabilityProfile {
	t.Helper()
	doc, err := profiles.ParseDocumentBytes([]byte(`
name: Roku
user_agent_patterns: ["Roku/"]
direct_play:
  - container: mkv,mp4
    type: Video
    video_codec: h264,hevc
    audio_codec: aac,eac3
`))
	require.NoError(t, err)
	profile, _, err := doc.ToProfile()
	require.NoError(t, err)
	return profile
}

func newTestService(t *testing.T, deps Dependencies) *PlaybackService {
	t.Helper()
	if deps.Profiles == nil {
		registry := profiles.NewRegistry(hclog.NewNullLogger(), nil)
		require.NoError(t, registry.Replace([]*types.CapabilityProfile{rokuProfile(t)}))
		deps.Profiles = registry
	}
	if deps.Policy == nil {
		deps.Policy = staticPolicy{policy: types.DefaultEncodingPolicy()}
	}
	return NewPlaybackService(hclog.NewNullLogger(), deps)
}

func TestPlaybackService_DecideResolvesDevice(t *testing.T) {
	recorder := &mockRecorder{}
	recorder.On("ObserveDecision", types.DecisionDirectPlay).Once()
	recorder.On("ObserveDecision", types.DecisionTranscode).Once()

	svc := newTestService(t, Dependencies{Metrics: recorder})

	resp, err := svc.Decide(context.Background(), DecideRequest{
		Device: profiles.DeviceIdentity{UserAgent: "Roku/DVP-12.0"},
		Media:  hevcMovie(),
	})
	require.NoError(t, err)
	assert.Equal(t, types.DecisionDirectPlay, resp.Decision.Kind)
	assert.Equal(t, "Roku", resp.Decision.ProfileName)
	assert.NotEmpty(t, resp.Trace)
	assert.Empty(t, resp.ID, "no history configured")

	// Unknown devices get the generic profile, which transcodes mkv
	resp, err = svc.Decide(context.Background(), DecideRequest{Media: hevcMovie()})
	require.NoError(t, err)
	assert.Equal(t, types.DecisionTranscode, resp.Decision.Kind)
	assert.Equal(t, profiles.GenericProfileName, resp.Decision.ProfileName)
	assert.Equal(t, "ts", resp.Decision.Plan.TargetContainer())

	recorder.AssertExpectations(t)
}

func TestPlaybackService_DecideAnalyzesPath(t *testing.T) {
	analyzer := &mockAnalyzer{}
	analyzer.On("Analyze", mock.Anything, "/media/movie.mkv").Return(hevcMovie(), nil).Once()
	analyzer.On("Analyze", mock.Anything, "/media/missing.mkv").
		Return(nil, perrors.SourceError("analyze_media", errors.New("ffprobe failed"))).Once()

	recorder := &mockRecorder{}
	recorder.On("ObserveDecision", mock.Anything)
	recorder.On("ObserveError", perrors.ErrorTypeSource).Once()

	svc := newTestService(t, Dependencies{Analyzer: analyzer, Metrics: recorder})

	resp, err := svc.Decide(context.Background(), DecideRequest{ProfileName: "roku", MediaPath: "/media/movie.mkv"})
	require.NoError(t, err)
	assert.Equal(t, "/media/movie.mkv", resp.Media.Path)
	assert.Equal(t, types.DecisionDirectPlay, resp.Decision.Kind)

	_, err = svc.Decide(context.Background(), DecideRequest{MediaPath: "/media/missing.mkv"})
	assert.Equal(t, perrors.ErrorTypeSource, perrors.GetType(err))

	analyzer.AssertExpectations(t)
	recorder.AssertExpectations(t)
}

func TestPlaybackService_DecideErrors(t *testing.T) {
	svc := newTestService(t, Dependencies{})

	_, err := svc.Decide(context.Background(), DecideRequest{})
	assert.True(t, errors.Is(err, perrors.ErrInvalidInput))

	_, err = svc.Decide(context.Background(), DecideRequest{MediaPath: "/media/movie.mkv"})
	assert.True(t, errors.Is(err, perrors.ErrInvalidInput), "no analyzer configured")

	_, err = svc.Decide(context.Background(), DecideRequest{ProfileName: "Toaster", Media: hevcMovie()})
	assert.True(t, errors.Is(err, perrors.ErrProfileNotFound))

	// A profile whose only rule demands disabled HEVC encoding is a configuration error
	bad, err := types.NewCapabilityProfile(types.ProfileIdentity{Name: "HEVC Only"}, nil, []types.TranscodingRule{
		{Container: "mp4", Type: types.MediaTypeVideo, VideoCodec: "hevc", AudioCodec: "aac"},
	})
	require.NoError(t, err)
	registry := profiles.NewRegistry(hclog.NewNullLogger(), bad)
	svc = newTestService(t, Dependencies{Profiles: registry})

	_, err = svc.Decide(context.Background(), DecideRequest{Media: hevcMovie()})
	require.Error(t, err)
	assert.True(t, perrors.IsConfigurationError(err))
}

func TestPlaybackService_History(t *testing.T) {
	history := &mockHistory{}
	history.On("Create", mock.Anything, mock.MatchedBy(func(r *models.DecisionRecord) bool {
		return r.DeviceName == "Living Room" && r.Kind == "transcode" && r.TargetContainer == "ts"
	})).Return(nil).Once()
	history.On("Create", mock.Anything, mock.Anything).Return(errors.New("disk full")).Once()
	history.On("List", mock.Anything, repository.DecisionFilter{Limit: 5}).
		Return([]*models.DecisionRecord{{ID: "a"}}, nil).Once()

	svc := newTestService(t, Dependencies{History: history})
	assert.True(t, svc.HistoryEnabled())

	req := DecideRequest{Device: profiles.DeviceIdentity{Name: "Living Room"}, Media: hevcMovie()}
	resp, err := svc.Decide(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, resp.ID, 36)

	// A failing store does not fail the decision
	resp, err = svc.Decide(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, resp.ID)
	assert.NotNil(t, resp.Decision)

	records, err := svc.History(context.Background(), repository.DecisionFilter{Limit: 5})
	require.NoError(t, err)
	assert.Len(t, records, 1)
	history.AssertExpectations(t)

	empty, err := newTestService(t, Dependencies{}).History(context.Background(), repository.DecisionFilter{})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPlaybackService_PolicyResolution(t *testing.T) {
	policy := types.DefaultEncodingPolicy()
	policy.HardwareAccelerationType = types.HardwareAccelAuto

	svc := newTestService(t, Dependencies{
		Policy:   staticPolicy{policy: policy},
		Resolver: autoResolver{},
	})
	assert.Equal(t, types.HardwareAccelVAAPI, svc.Policy(context.Background()).HardwareAccelerationType)

	// With vaapi active the generic h264 plan carries hardware settings
	resp, err := svc.Decide(context.Background(), DecideRequest{Media: hevcMovie()})
	require.NoError(t, err)
	assert.True(t, resp.Decision.Plan.Settings().Has(types.SettingHardwareAcceleration))

	assert.Equal(t, []string{profiles.GenericProfileName, "Roku"}, svc.ProfileNames())
	p, err := svc.Profile("Roku")
	require.NoError(t, err)
	assert.Equal(t, "Roku", p.Name())
}
