package core

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/types"
)

func containers(t *testing.T, raw string) types.ContainerSet {
	t.Helper()
	set, err := types.ParseContainerSet(raw)
	require.NoError(t, err)
	return set
}

func codecs(t *testing.T, raw string) types.CodecSet {
	t.Helper()
	set, err := types.ParseCodecSet(raw)
	require.NoError(t, err)
	return set
}

func settings(t *testing.T, raw map[string]string) types.Settings {
	t.Helper()
	s, err := types.ParseSettings(raw)
	require.NoError(t, err)
	return s
}

func newProfile(t *testing.T, directPlay []types.DirectPlayRule, transcoding []types.TranscodingRule) *types.CapabilityProfile {
	t.Helper()
	p, err := types.NewCapabilityProfile(types.ProfileIdentity{Name: "Test Device"}, directPlay, transcoding)
	require.NoError(t, err)
	return p
}

// genericProfile mirrors the shipped baseline profile.
func genericProfile(t *testing.T) *types.CapabilityProfile {
	t.Helper()
	return newProfile(t,
		[]types.DirectPlayRule{
			{Containers: containers(t, "mp3,wma"), Type: types.MediaTypeAudio},
			{Containers: containers(t, "avi,mp4"), Type: types.MediaTypeVideo},
		},
		[]types.TranscodingRule{
			{Container: "mp3", Type: types.MediaTypeAudio, AudioCodec: "mp3"},
			{Container: "ts", Type: types.MediaTypeVideo, AudioCodec: "aac", VideoCodec: "h264",
				Settings: settings(t, map[string]string{"VideoProfile": "baseline"})},
		},
	)
}

func hevcMKV() *types.MediaDescriptor {
	return &types.MediaDescriptor{
		Container: "mkv",
		Type:      types.MediaTypeVideo,
		Streams: []types.StreamDescriptor{
			{Index: 0, Type: types.StreamTypeVideo, Codec: "hevc", Width: 3840, Height: 2160, ColorDepth: 10},
			{Index: 1, Type: types.StreamTypeAudio, Codec: "eac3", Channels: 6},
		},
	}
}
