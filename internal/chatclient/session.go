// Package chatclient holds the client side of a Valerie conversation: the
// message list, the draft, turn-taking and voice playback.
//
// A Session is not safe for concurrent use. UIs that send in the background
// call BeginSubmit on their event loop, perform the request elsewhere and
// hand the outcome back with Finish.
package chatclient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"valerie/internal/domain"
)

// ApologyMessage replaces the answer when a request fails.
const ApologyMessage = "Oops, it looks like my response got cut short. Please try sending your message again and I'll do my best to respond in full. Thank you for your patience!"

// Player drives the one audio element a session plays answers through.
type Player interface {
	Load(url string) error
	Play() error
	Pause()
	SetMuted(muted bool)
}

type nopPlayer struct{}

func (nopPlayer) Load(string) error { return nil }
func (nopPlayer) Play() error       { return nil }
func (nopPlayer) Pause()            {}
func (nopPlayer) SetMuted(bool)     {}

type KeyAction int

const (
	KeyNone KeyAction = iota
	KeySubmit
	KeyNewline
)

// EnterAction decides what the submit key does. The modifier inserts a line
// break; a bare press submits unless the draft is empty.
func EnterAction(draft string, modified bool) KeyAction {
	if modified {
		return KeyNewline
	}
	if draft == "" {
		return KeyNone
	}
	return KeySubmit
}

// Greeting returns the opening line for a visitor.
func Greeting(name string, visits int) string {
	if visits > 1 {
		return fmt.Sprintf("Hi there %s! Welcome back!", name)
	}
	return fmt.Sprintf("Hi there %s! I see you are new here. I am Valerie, your assistant. Would you like a tour?", name)
}

type Session struct {
	transport Transport
	player    Player

	messages []domain.ChatMessage
	draft    string
	loading  bool
	username string
	visits   int
	playback Playback
	lastErr  error
}

// NewSession creates a session with voice output on. A nil player discards
// audio.
func NewSession(t Transport, p Player) (*Session, error) {
	if t == nil {
		return nil, errors.New("chatclient: transport must not be nil")
	}
	if p == nil {
		p = nopPlayer{}
	}
	return &Session{
		transport: t,
		player:    p,
		playback:  Playback{VoiceOn: true},
	}, nil
}

// Greet replaces the whole conversation with the greeting for name/visits.
func (s *Session) Greet(name string, visits int) {
	s.username = name
	s.visits = visits
	s.messages = []domain.ChatMessage{{Role: domain.RoleAssistant, Content: Greeting(name, visits)}}
}

// SetVisitor greets again only when the name or visit counter changed.
func (s *Session) SetVisitor(name string, visits int) {
	if name == s.username && visits == s.visits && len(s.messages) > 0 {
		return
	}
	s.Greet(name, visits)
}

func (s *Session) SetDraft(text string) {
	if s.loading {
		return
	}
	s.draft = text
}

func (s *Session) Draft() string          { return s.draft }
func (s *Session) Loading() bool          { return s.loading }
func (s *Session) VoiceOn() bool          { return s.playback.VoiceOn }
func (s *Session) Playback() Playback     { return s.playback }
func (s *Session) AudioURL() string       { return s.playback.Current }
func (s *Session) LastError() error       { return s.lastErr }
func (s *Session) Visitor() (string, int) { return s.username, s.visits }

// Messages returns a copy of the conversation.
func (s *Session) Messages() []domain.ChatMessage {
	out := make([]domain.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// BeginSubmit appends the draft as a user turn and returns the conversation
// to send. It reports false, changing nothing, for a blank draft or while a
// request is already in flight.
func (s *Session) BeginSubmit() ([]domain.ChatMessage, bool) {
	if s.loading || strings.TrimSpace(s.draft) == "" {
		return nil, false
	}
	s.messages = append(s.messages, domain.ChatMessage{Role: domain.RoleUser, Content: s.draft})
	s.loading = true
	return s.Messages(), true
}

// Finish records the outcome of the request started by BeginSubmit.
func (s *Session) Finish(reply Reply, err error) {
	if !s.loading {
		return
	}
	s.loading = false
	s.draft = ""
	s.lastErr = err
	if err != nil {
		s.messages = append(s.messages, domain.ChatMessage{Role: domain.RoleAssistant, Content: ApologyMessage})
		return
	}
	s.messages = append(s.messages, domain.ChatMessage{Role: domain.RoleAssistant, Content: reply.Result.Content})
	s.dispatch(AudioArrived{URL: reply.AudioURL})
}

// Submit sends the draft and waits for the answer. A failed request is
// reported through the apology message and returned; it is never retried.
func (s *Session) Submit(ctx context.Context) error {
	msgs, ok := s.BeginSubmit()
	if !ok {
		return nil
	}
	reply, err := s.transport.Send(ctx, msgs)
	s.Finish(reply, err)
	return err
}

// PressEnter applies the submit key to the current draft.
func (s *Session) PressEnter(ctx context.Context, modified bool) error {
	switch EnterAction(s.draft, modified) {
	case KeySubmit:
		return s.Submit(ctx)
	case KeyNewline:
		s.SetDraft(s.draft + "\n")
	}
	return nil
}

func (s *Session) ToggleVoice() { s.dispatch(VoiceToggled{}) }

// AudioEnded tells the session the element stopped on its own.
func (s *Session) AudioEnded() { s.dispatch(PlaybackEnded{}) }

func (s *Session) dispatch(ev PlaybackEvent) {
	next, effects := Reduce(s.playback, ev)
	s.playback = next
	for _, e := range effects {
		var err error
		switch e.Kind {
		case EffectLoad:
			err = s.player.Load(e.URL)
		case EffectPlay:
			err = s.player.Play()
		case EffectPause:
			s.player.Pause()
		case EffectMute:
			s.player.SetMuted(true)
		case EffectUnmute:
			s.player.SetMuted(false)
		}
		if err != nil {
			s.lastErr = fmt.Errorf("chatclient: audio playback: %w", err)
			s.playback, _ = Reduce(s.playback, PlaybackEnded{})
			return
		}
	}
}
