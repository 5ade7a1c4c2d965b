// Package tui is a Bubble Tea front-end for a chatclient.Session.
package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"valerie/internal/chatclient"
	"valerie/internal/domain"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("36"))
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("36")).Bold(true)
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Bold(true)
	waitingStyle   = lipgloss.NewStyle().Faint(true)
	inputStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("245")).Padding(0, 1)
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

const spinnerInterval = 100 * time.Millisecond

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// replyMsg carries the outcome of a request started by BeginSubmit.
type replyMsg struct {
	reply chatclient.Reply
	err   error
}

type tickMsg struct{}

// Model is not safe to share; Bubble Tea owns it on its event loop and only
// the network call runs in a command goroutine.
type Model struct {
	session   *chatclient.Session
	transport chatclient.Transport
	ctx       context.Context

	width  int
	height int
	frame  int
}

func New(ctx context.Context, session *chatclient.Session, transport chatclient.Transport) *Model {
	return &Model{session: session, transport: transport, ctx: ctx, width: 80, height: 24}
}

func (m *Model) Init() tea.Cmd { return nil }

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case replyMsg:
		m.session.Finish(msg.reply, msg.err)
		return m, nil

	case tickMsg:
		if !m.session.Loading() {
			return m, nil
		}
		m.frame++
		return m, tick()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit
	case tea.KeyCtrlV:
		m.session.ToggleVoice()
		return m, nil
	case tea.KeyEnter:
		return m.pressEnter(msg.Alt)
	case tea.KeyBackspace:
		d := []rune(m.session.Draft())
		if len(d) > 0 {
			m.session.SetDraft(string(d[:len(d)-1]))
		}
		return m, nil
	case tea.KeySpace:
		m.session.SetDraft(m.session.Draft() + " ")
		return m, nil
	case tea.KeyRunes:
		m.session.SetDraft(m.session.Draft() + string(msg.Runes))
		return m, nil
	}
	return m, nil
}

// pressEnter submits on a bare Enter and inserts a line break on Alt+Enter,
// since terminals do not report Shift+Enter.
func (m *Model) pressEnter(modified bool) (tea.Model, tea.Cmd) {
	switch chatclient.EnterAction(m.session.Draft(), modified) {
	case chatclient.KeyNewline:
		m.session.SetDraft(m.session.Draft() + "\n")
	case chatclient.KeySubmit:
		msgs, ok := m.session.BeginSubmit()
		if !ok {
			return m, nil
		}
		return m, tea.Batch(m.send(msgs), tick())
	}
	return m, nil
}

func (m *Model) send(msgs []domain.ChatMessage) tea.Cmd {
	ctx, transport := m.ctx, m.transport
	return func() tea.Msg {
		reply, err := transport.Send(ctx, msgs)
		return replyMsg{reply: reply, err: err}
	}
}

func tick() tea.Cmd {
	return tea.Tick(spinnerInterval, func(_ time.Time) tea.Msg { return tickMsg{} })
}

func (m *Model) View() string {
	header := titleStyle.Render("Valerie")

	input := m.session.Draft()
	if m.session.Loading() {
		input = waitingStyle.Render("Waiting for response... " + spinnerFrames[m.frame%len(spinnerFrames)])
	} else if input == "" {
		input = waitingStyle.Render("Talk to Valerie...")
	}
	inputBox := inputStyle.Width(max(m.width-4, 10)).Render(input)

	voice := "off"
	if m.session.VoiceOn() {
		voice = "on"
	}
	status := statusStyle.Render(fmt.Sprintf("voice %s (%s) · enter send · alt+enter newline · ctrl+v voice · esc quit",
		voice, m.session.Playback().Status))

	chrome := lipgloss.Height(header) + lipgloss.Height(inputBox) + lipgloss.Height(status)
	body := m.renderMessages(max(m.height-chrome, 1))

	return lipgloss.JoinVertical(lipgloss.Left, header, body, inputBox, status)
}

// renderMessages lays out the conversation and keeps only its last lines,
// so the newest turn is always in view.
func (m *Model) renderMessages(height int) string {
	wrap := lipgloss.NewStyle().Width(max(m.width-6, 10))
	msgs := m.session.Messages()

	var lines []string
	for i, msg := range msgs {
		label := userStyle.Render("Me")
		if msg.Role == domain.RoleAssistant {
			label = assistantStyle.Render("AI")
		}
		content := plainText(msg.Content)
		if msg.Role == domain.RoleUser && m.session.Loading() && i == len(msgs)-1 {
			content = waitingStyle.Render(content)
		}
		block := lipgloss.JoinHorizontal(lipgloss.Top, label+"  ", wrap.Render(content))
		lines = append(lines, strings.Split(block, "\n")...)
		lines = append(lines, "")
	}
	if len(lines) > height {
		lines = lines[len(lines)-height:]
	}
	return strings.Join(lines, "\n")
}

var (
	mdLink     = regexp.MustCompile(`\[([^\]]+)\]\(([^)\s]+)\)`)
	mdHeading  = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	mdFence    = regexp.MustCompile("(?m)^```[^\n]*\n?")
	mdEmphasis = regexp.MustCompile(`(?m)(^|[\s(\[])[*_]{1,3}([^*_\n]+)[*_]{1,3}`)
	mdCode     = regexp.MustCompile("`([^`\n]+)`")
	blankRuns  = regexp.MustCompile(`\n{3,}`)
)

// plainText strips markdown markers for terminal display. Links keep their
// target after the label so it can still be copied.
func plainText(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = mdFence.ReplaceAllString(content, "")
	content = mdHeading.ReplaceAllString(content, "")
	content = mdLink.ReplaceAllString(content, "$1 ($2)")
	content = mdEmphasis.ReplaceAllString(content, "$1$2")
	content = mdCode.ReplaceAllString(content, "$1")
	return blankRuns.ReplaceAllString(content, "\n\n")
}
