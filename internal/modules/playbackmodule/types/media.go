package types

// StreamType is the kind of an elementary stream.
type StreamType string

const (
	StreamTypeVideo    StreamType = "Video"
	StreamTypeAudio    StreamType = "Audio"
	StreamTypeSubtitle StreamType = "Subtitle"
)

// StreamDescriptor describes one stream of a media item.
type StreamDescriptor struct {
	Index        int        `json:"index"`
	Type         StreamType `json:"type"`
	Codec        string     `json:"codec"`
	Bitrate      int64      `json:"bitrate,omitempty"`
	Width        int        `json:"width,omitempty"`
	Height       int        `json:"height,omitempty"`
	ColorDepth   int        `json:"color_depth,omitempty"`
	IsHDR        bool       `json:"is_hdr,omitempty"`
	IsInterlaced bool       `json:"is_interlaced,omitempty"`
	Channels     int        `json:"channels,omitempty"`
}

// MediaDescriptor holds the technical characteristics of a media item, as
// supplied by a media analysis source.
type MediaDescriptor struct {
	Path      string             `json:"path,omitempty"`
	Container string             `json:"container"`
	Type      MediaType          `json:"type,omitempty"`
	Bitrate   int64              `json:"bitrate,omitempty"`
	Streams   []StreamDescriptor `json:"streams,omitempty"`
}

// MediaType returns the declared media type, or infers it from the streams
// when none was declared.
func (m *MediaDescriptor) MediaType() MediaType {
	if m.Type.Valid() {
		return m.Type
	}
	if len(m.VideoStreams()) > 0 {
		return MediaTypeVideo
	}
	if len(m.AudioStreams()) > 0 {
		return MediaTypeAudio
	}
	if IsImageContainer(m.Container) {
		return MediaTypePhoto
	}
	return MediaTypeUnknown
}

// VideoStreams returns the video streams in stream order.
func (m *MediaDescriptor) VideoStreams() []StreamDescriptor {
	return m.streamsOf(StreamTypeVideo)
}

// AudioStreams returns the audio streams in stream order.
func (m *MediaDescriptor) AudioStreams() []StreamDescriptor {
	return m.streamsOf(StreamTypeAudio)
}

// SubtitleStreams returns the subtitle streams in stream order.
func (m *MediaDescriptor) SubtitleStreams() []StreamDescriptor {
	return m.streamsOf(StreamTypeSubtitle)
}

// PrimaryVideo returns the first video stream.
func (m *MediaDescriptor) PrimaryVideo() (StreamDescriptor, bool) {
	for _, s := range m.Streams {
		if s.Type == StreamTypeVideo {
			return s, true
		}
	}
	return StreamDescriptor{}, false
}

// IsHDR reports whether any video stream carries HDR metadata.
func (m *MediaDescriptor) IsHDR() bool {
	for _, s := range m.Streams {
		if s.Type == StreamTypeVideo && s.IsHDR {
			return true
		}
	}
	return false
}

// MaxAudioChannels returns the highest channel count across audio streams.
func (m *MediaDescriptor) MaxAudioChannels() int {
	max := 0
	for _, s := range m.Streams {
		if s.Type == StreamTypeAudio && s.Channels > max {
			max = s.Channels
		}
	}
	return max
}

func (m *MediaDescriptor) streamsOf(t StreamType) []StreamDescriptor {
	var out []StreamDescriptor
	for _, s := range m.Streams {
		if s.Type == t {
			out = append(out, s)
		}
	}
	return out
}
