package chatcmder

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	bubbletea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/irobothq/irobot/pkg/chat"
	"github.com/irobothq/irobot/pkg/cliui"
)

func init() {
	// Force TrueColor profile to fix lipgloss color detection issue
	// See: https://github.com/charmbracelet/lipgloss/issues/439
	renderer := lipgloss.NewRenderer(os.Stdout, termenv.WithProfile(termenv.TrueColor))
	renderer.SetColorProfile(termenv.TrueColor)
	lipgloss.SetDefaultRenderer(renderer)
}

var (
	chatTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	chatMutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	chatUserStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	chatAsstStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	chatSourceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
	chatErrStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

// streamRefresh is how often the TUI re-reads the consumer snapshot while
// an answer is streaming.
const streamRefresh = 80 * time.Millisecond

type chatKeyMap struct {
	Send    key.Binding
	NewConv key.Binding
	Quit    key.Binding
}

func (k chatKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.NewConv, k.Quit}
}

func (k chatKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Send, k.NewConv, k.Quit}}
}

func defaultChatKeyMap() chatKeyMap {
	return chatKeyMap{
		Send:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		NewConv: key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "new conversation")),
		Quit:    key.NewBinding(key.WithKeys("esc", "ctrl+c"), key.WithHelp("esc", "quit")),
	}
}

type turnEntry struct {
	question string
	answer   string
	sources  []string
	err      error
}

type turnDoneMsg struct {
	question string
	res      *chat.Result
	err      error
}

type streamTickMsg time.Time

type chatModel struct {
	ctx  context.Context
	sess *session

	ta   textarea.Model
	vp   viewport.Model
	sp   spinner.Model
	help help.Model
	keys chatKeyMap

	turns     []turnEntry
	streaming string
	busy      bool
	pending   string
	ready     bool
	width     int
	height    int
}

// runChatTUI drives the chat TUI. Quitting cancels the context and the
// deferred Cancel in the commander closes any in-flight stream; no
// connection outlives the program.
func runChatTUI(ctx context.Context, sess *session) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := bubbletea.NewProgram(newChatModel(ctx, sess),
		bubbletea.WithContext(ctx),
		bubbletea.WithAltScreen(),
	)
	_, err := program.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

func newChatModel(ctx context.Context, sess *session) chatModel {
	ta := textarea.New()
	ta.Placeholder = "Ask IroBot anything..."
	ta.Prompt = "┃ "
	ta.SetHeight(2)
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	return chatModel{
		ctx:  ctx,
		sess: sess,
		ta:   ta,
		sp:   sp,
		help: help.New(),
		keys: defaultChatKeyMap(),
	}
}

func (m chatModel) Init() bubbletea.Cmd {
	return textarea.Blink
}

// sendTurn runs one generation off the update loop. Persistence happens
// here too, so a slow history backend never blocks rendering.
func (m chatModel) sendTurn(question string) bubbletea.Cmd {
	ctx := m.ctx
	sess := m.sess
	return func() bubbletea.Msg {
		res, err := sess.consumer.Send(ctx, sess.convID, question)
		if err == nil {
			sess.recordTurn(ctx, question, res)
		}
		return turnDoneMsg{question: question, res: res, err: err}
	}
}

func streamTick() bubbletea.Cmd {
	return bubbletea.Tick(streamRefresh, func(t time.Time) bubbletea.Msg {
		return streamTickMsg(t)
	})
}

func (m chatModel) Update(msg bubbletea.Msg) (bubbletea.Model, bubbletea.Cmd) {
	switch msg := msg.(type) {
	case bubbletea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ta.SetWidth(msg.Width - 2)
		vpHeight := msg.Height - m.ta.Height() - 6
		if vpHeight < 3 {
			vpHeight = 3
		}
		if !m.ready {
			m.vp = viewport.New(msg.Width, vpHeight)
			m.ready = true
		} else {
			m.vp.Width = msg.Width
			m.vp.Height = vpHeight
		}
		m.refreshTranscript()
		return m, nil

	case streamTickMsg:
		if !m.busy {
			return m, nil
		}
		snap := m.sess.consumer.Snapshot()
		m.streaming = snap.Content
		m.refreshTranscript()
		return m, streamTick()

	case spinner.TickMsg:
		var cmd bubbletea.Cmd
		m.sp, cmd = m.sp.Update(msg)
		return m, cmd

	case turnDoneMsg:
		m.busy = false
		m.streaming = ""
		m.pending = ""

		entry := turnEntry{question: msg.question}
		if msg.err != nil {
			// Keep whatever partial content survived the failure.
			entry.answer = m.sess.consumer.Snapshot().Content
			entry.err = msg.err
		} else {
			entry.answer = msg.res.Content
			for _, src := range msg.res.Sources {
				entry.sources = append(entry.sources, src.Title)
			}
		}
		m.turns = append(m.turns, entry)
		m.refreshTranscript()

		if msg.err != nil && isCanceled(msg.err) {
			return m, bubbletea.Quit
		}
		return m, nil

	case bubbletea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, bubbletea.Quit

		case key.Matches(msg, m.keys.NewConv):
			if m.busy {
				return m, nil
			}
			if err := m.sess.reset(); err != nil {
				m.turns = append(m.turns, turnEntry{err: err})
			}
			m.turns = nil
			m.refreshTranscript()
			return m, nil

		case key.Matches(msg, m.keys.Send):
			if m.busy {
				return m, nil
			}
			question := strings.TrimSpace(m.ta.Value())
			if question == "" {
				return m, nil
			}
			m.busy = true
			m.pending = question
			m.streaming = ""
			m.ta.Reset()
			m.refreshTranscript()
			return m, bubbletea.Batch(m.sendTurn(question), streamTick(), m.sp.Tick)
		}
	}

	var taCmd, vpCmd bubbletea.Cmd
	m.ta, taCmd = m.ta.Update(msg)
	m.vp, vpCmd = m.vp.Update(msg)
	return m, bubbletea.Batch(taCmd, vpCmd)
}

// refreshTranscript re-renders the conversation into the viewport and pins
// the view to the newest content.
func (m *chatModel) refreshTranscript() {
	if !m.ready {
		return
	}

	var b strings.Builder
	for _, turn := range m.turns {
		writeTurn(&b, turn)
	}

	if m.busy {
		b.WriteString(chatUserStyle.Render("you> ") + m.pending + "\n")
		if m.streaming != "" {
			b.WriteString(chatAsstStyle.Render(m.streaming) + "\n")
		}
	}

	m.vp.SetContent(b.String())
	m.vp.GotoBottom()
}

func writeTurn(b *strings.Builder, turn turnEntry) {
	if turn.question != "" {
		b.WriteString(chatUserStyle.Render("you> ") + turn.question + "\n")
	}
	if turn.answer != "" {
		b.WriteString(chatAsstStyle.Render(turn.answer) + "\n")
	}
	if len(turn.sources) > 0 {
		b.WriteString(chatSourceStyle.Render("sources: "+strings.Join(turn.sources, ", ")) + "\n")
	}
	if turn.err != nil {
		b.WriteString(chatErrStyle.Render("✗ "+turn.err.Error()) + "\n")
	}
	b.WriteString("\n")
}

func (m chatModel) View() string {
	if !m.ready {
		return "loading..."
	}

	var b strings.Builder

	title := chatTitleStyle.Render("irobot chat")
	if m.sess.title != "" {
		title += chatMutedStyle.Render("  " + cliui.Truncate(m.sess.title, 48))
	}
	b.WriteString(title + "\n\n")

	b.WriteString(m.vp.View() + "\n")

	if m.busy {
		b.WriteString(m.sp.View() + chatMutedStyle.Render("thinking...") + "\n")
	} else {
		b.WriteString("\n")
	}

	b.WriteString(m.ta.View() + "\n")
	b.WriteString(m.help.View(m.keys))

	return b.String()
}
