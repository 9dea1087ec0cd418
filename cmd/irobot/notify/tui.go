package notifycmder

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	bubbletea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/irobothq/irobot/pkg/notify"
	"github.com/irobothq/irobot/pkg/stream"
)

func init() {
	// Force TrueColor profile to fix lipgloss color detection issue
	// See: https://github.com/charmbracelet/lipgloss/issues/439
	renderer := lipgloss.NewRenderer(os.Stdout, termenv.WithProfile(termenv.TrueColor))
	renderer.SetColorProfile(termenv.TrueColor)
	lipgloss.SetDefaultRenderer(renderer)
}

const notifyBacklog = 200

var (
	notifyTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	notifyMutedStyleT = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	notifyOpenStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("70"))
	notifyFailStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	notifyWarnStyleT  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

type notifyKeyMap struct {
	Up    key.Binding
	Down  key.Binding
	Clear key.Binding
	Quit  key.Binding
}

func (k notifyKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Down, k.Up, k.Clear, k.Quit}
}

func (k notifyKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Down, k.Up}, {k.Clear, k.Quit}}
}

func defaultNotifyKeyMap() notifyKeyMap {
	return notifyKeyMap{
		Up:    key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k", "up")),
		Down:  key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j", "down")),
		Clear: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear")),
		Quit:  key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

type notifyEventMsg struct {
	event notify.Event
}

type notifyStateMsg struct {
	state stream.State
}

type notifyDownMsg struct {
	err error
}

type notifyModel struct {
	consumer *notify.Consumer
	channel  string
	inbox    chan bubbletea.Msg
	events   []notify.Event
	state    stream.State
	downErr  error
	scroll   int
	width    int
	height   int
	keys     notifyKeyMap
	help     help.Model
}

// runNotifyTUI drives the notification TUI. The consumer's handlers feed a
// buffered channel; waitForNotify re-arms itself per message so every state
// mutation happens inside Update. Quitting cancels the context, which closes
// the stream before the program returns.
func runNotifyTUI(ctx context.Context, consumer *notify.Consumer, channel string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := newNotifyModel(consumer, channel)

	// Non-blocking sends: once the program has quit nothing drains the
	// inbox, and a blocked handler would wedge the stream's read loop.
	consumer.OnAny(func(ev notify.Event) {
		model.post(notifyEventMsg{event: ev})
	})
	consumer.OnStateChange(func(s stream.State) {
		model.post(notifyStateMsg{state: s})
	})
	consumer.OnDown(func(err error) {
		model.post(notifyDownMsg{err: err})
	})

	if err := consumer.Connect(ctx); err != nil {
		return fmt.Errorf("opening notification stream: %w", err)
	}
	defer consumer.Disconnect()

	program := bubbletea.NewProgram(model,
		bubbletea.WithContext(ctx),
		bubbletea.WithAltScreen(),
	)
	_, err := program.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

func newNotifyModel(consumer *notify.Consumer, channel string) notifyModel {
	return notifyModel{
		consumer: consumer,
		channel:  channel,
		inbox:    make(chan bubbletea.Msg, 64),
		state:    consumer.State(),
		keys:     defaultNotifyKeyMap(),
		help:     help.New(),
	}
}

func (m notifyModel) post(msg bubbletea.Msg) {
	select {
	case m.inbox <- msg:
	default:
	}
}

// waitForNotify hands the next consumer callback to the update loop.
func (m notifyModel) waitForNotify() bubbletea.Cmd {
	return func() bubbletea.Msg {
		return <-m.inbox
	}
}

func (m notifyModel) Init() bubbletea.Cmd {
	return m.waitForNotify()
}

func (m notifyModel) Update(msg bubbletea.Msg) (bubbletea.Model, bubbletea.Cmd) {
	switch msg := msg.(type) {
	case bubbletea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case notifyEventMsg:
		m.events = append(m.events, msg.event)
		if len(m.events) > notifyBacklog {
			m.events = m.events[len(m.events)-notifyBacklog:]
		}
		m.scroll = 0
		return m, m.waitForNotify()
	case notifyStateMsg:
		m.state = msg.state
		if msg.state == stream.StateOpen {
			m.downErr = nil
		}
		return m, m.waitForNotify()
	case notifyDownMsg:
		m.downErr = msg.err
		return m, m.waitForNotify()
	case bubbletea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, bubbletea.Quit
		case key.Matches(msg, m.keys.Up):
			if m.scroll < len(m.events)-1 {
				m.scroll++
			}
			return m, nil
		case key.Matches(msg, m.keys.Down):
			if m.scroll > 0 {
				m.scroll--
			}
			return m, nil
		case key.Matches(msg, m.keys.Clear):
			m.events = nil
			m.scroll = 0
			return m, nil
		}
	}

	return m, nil
}

func (m notifyModel) View() string {
	var b strings.Builder

	b.WriteString(notifyTitleStyle.Render("irobot notify"))
	b.WriteString(notifyMutedStyleT.Render("  channel: " + m.channel))
	b.WriteString("  " + m.renderState())
	b.WriteString("\n\n")

	rows := m.visibleRows()
	if len(m.events) == 0 {
		b.WriteString(notifyMutedStyleT.Render("  waiting for events..."))
		b.WriteString("\n")
	} else {
		start := len(m.events) - rows - m.scroll
		if start < 0 {
			start = 0
		}
		end := start + rows
		if end > len(m.events) {
			end = len(m.events)
		}
		for _, ev := range m.events[start:end] {
			b.WriteString("  " + formatEventLine(ev) + "\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))

	return b.String()
}

func (m notifyModel) renderState() string {
	switch {
	case m.downErr != nil:
		return notifyFailStyle.Render("down: " + m.downErr.Error())
	case m.state == stream.StateOpen:
		return notifyOpenStyle.Render("● open")
	case m.state == stream.StateConnecting:
		return notifyWarnStyleT.Render("● connecting")
	case m.state == stream.StateFailed:
		return notifyWarnStyleT.Render("● reconnecting")
	default:
		return notifyMutedStyleT.Render("● " + m.state.String())
	}
}

func (m notifyModel) visibleRows() int {
	// Header, blank lines and help take six rows.
	rows := m.height - 6
	if rows < 1 {
		rows = 10
	}
	return rows
}
