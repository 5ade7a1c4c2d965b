package chatclient

// PlaybackStatus is the state of the single audio element a session owns.
type PlaybackStatus int

const (
	PlaybackIdle PlaybackStatus = iota
	PlaybackPlaying
	PlaybackPaused
)

func (s PlaybackStatus) String() string {
	switch s {
	case PlaybackPlaying:
		return "playing"
	case PlaybackPaused:
		return "paused"
	default:
		return "idle"
	}
}

// Playback is the voice output state. Current is the URL loaded into the
// audio element; Pending is an answer that arrived while voice was off and
// has not been played yet.
type Playback struct {
	Status  PlaybackStatus
	VoiceOn bool
	Current string
	Pending string
}

type PlaybackEvent interface {
	isPlaybackEvent()
}

// AudioArrived is emitted once per answer that carries audio.
type AudioArrived struct{ URL string }

// VoiceToggled flips the voice output switch.
type VoiceToggled struct{}

// PlaybackEnded is emitted when the element finishes or fails to play.
type PlaybackEnded struct{}

func (AudioArrived) isPlaybackEvent()  {}
func (VoiceToggled) isPlaybackEvent()  {}
func (PlaybackEnded) isPlaybackEvent() {}

type EffectKind int

const (
	// EffectLoad replaces the audio element with a new one for URL.
	EffectLoad EffectKind = iota
	EffectPlay
	EffectPause
	EffectMute
	EffectUnmute
)

type Effect struct {
	Kind EffectKind
	URL  string
}

// Reduce is the only place playback state changes. Both new answers and the
// voice switch go through it, so an answer never gets more than one element
// and resuming never creates one.
func Reduce(p Playback, ev PlaybackEvent) (Playback, []Effect) {
	switch ev := ev.(type) {
	case AudioArrived:
		if ev.URL == "" {
			return p, nil
		}
		if !p.VoiceOn {
			p.Pending = ev.URL
			return p, nil
		}
		return startPlayback(p, ev.URL)

	case VoiceToggled:
		p.VoiceOn = !p.VoiceOn
		if !p.VoiceOn {
			if p.Status != PlaybackPlaying {
				return p, nil
			}
			p.Status = PlaybackPaused
			return p, []Effect{{Kind: EffectPause}, {Kind: EffectMute}}
		}
		if p.Pending != "" {
			return startPlayback(p, p.Pending)
		}
		if p.Status == PlaybackPaused {
			p.Status = PlaybackPlaying
			return p, []Effect{{Kind: EffectUnmute}, {Kind: EffectPlay}}
		}
		return p, nil

	case PlaybackEnded:
		if p.Status == PlaybackPlaying {
			p.Status = PlaybackIdle
		}
		return p, nil
	}
	return p, nil
}

func startPlayback(p Playback, url string) (Playback, []Effect) {
	p.Status = PlaybackPlaying
	p.Current = url
	p.Pending = ""
	return p, []Effect{{Kind: EffectLoad, URL: url}, {Kind: EffectPlay}}
}
