package profiles

import (
	"github.com/mantonx/viewra-playback/internal/modules/playbackmodule/types"
)

// GenericProfileName is the name of the built-in fallback profile.
const GenericProfileName = "Generic Device"

const mediaBrowserURL = "http://mediabrowser3.com/"

// DefaultProfile returns the baseline profile used when no device-specific
// profile matches. It direct plays mp3/wma audio and avi/mp4 video, and
// transcodes everything else to mp3 or baseline h264 in MPEG-TS.
func DefaultProfile() *types.CapabilityProfile {
	return mustProfile(Document{
		ProfileIdentity: types.ProfileIdentity{
			Name:             GenericProfileName,
			ProtocolInfo:     "DLNA",
			FriendlyName:     "Media Browser",
			Manufacturer:     "Media Browser",
			ManufacturerURL:  mediaBrowserURL,
			ModelName:        "Media Browser",
			ModelNumber:      "Media Browser",
			ModelDescription: "Media Browser",
			ModelURL:         mediaBrowserURL,
		},
		DirectPlay: []DirectPlayDocument{
			{Container: "mp3,wma", Type: "Audio"},
			{Container: "avi,mp4", Type: "Video"},
		},
		Transcoding: []TranscodingDocument{
			{Container: "mp3", Type: "Audio", AudioCodec: "mp3"},
			{Container: "ts", Type: "Video", AudioCodec: "aac", VideoCodec: "h264",
				Settings: map[string]string{"VideoProfile": "baseline"}},
		},
	})
}

func mustProfile(doc Document) *types.CapabilityProfile {
	profile, _, err := doc.ToProfile()
	if err != nil {
		panic(err)
	}
	return profile
}
