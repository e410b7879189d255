package youtube

import "strings"

// Liveness classifies a video as a normal upload or a broadcast.
type Liveness int

const (
	LivenessUnknown Liveness = iota
	LivenessNormal
	LivenessLive
	LivenessUpcoming
)

// ParseLiveness maps the API's liveBroadcastContent value.
func ParseLiveness(raw string) Liveness {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "none":
		return LivenessNormal
	case "live":
		return LivenessLive
	case "upcoming":
		return LivenessUpcoming
	default:
		return LivenessUnknown
	}
}

// Broadcast reports whether the video is live now or scheduled.
func (l Liveness) Broadcast() bool {
	return l == LivenessLive || l == LivenessUpcoming
}

func (l Liveness) String() string {
	switch l {
	case LivenessNormal:
		return "normal"
	case LivenessLive:
		return "live"
	case LivenessUpcoming:
		return "upcoming"
	default:
		return "unknown"
	}
}

// MarshalText writes the API vocabulary so persisted records stay readable.
func (l Liveness) MarshalText() ([]byte, error) {
	switch l {
	case LivenessNormal:
		return []byte("none"), nil
	case LivenessLive:
		return []byte("live"), nil
	case LivenessUpcoming:
		return []byte("upcoming"), nil
	default:
		return []byte(""), nil
	}
}

func (l *Liveness) UnmarshalText(text []byte) error {
	*l = ParseLiveness(string(text))
	return nil
}
