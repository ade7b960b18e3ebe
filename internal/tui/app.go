// Package tui provides the terminal overlay for the advisor.
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/xonecas/spire-advisor/internal/advice"
	"github.com/xonecas/spire-advisor/internal/config"
	"github.com/xonecas/spire-advisor/internal/constants"
	"github.com/xonecas/spire-advisor/internal/core"
	"github.com/xonecas/spire-advisor/internal/snapshot"
	"github.com/xonecas/spire-advisor/internal/store"
)

// View represents the current view mode.
type View int

const (
	ViewMain View = iota
	ViewSnapshot
	ViewHistory
)

// Engine is the part of the advisor engine the overlay drives. Tick and
// RequestManual are only called from Update, so they share one goroutine.
type Engine interface {
	Tick()
	RequestManual() error
	Status() string
	Busy() bool
	Recommendation() *advice.Recommendation
	LastFailure() *core.Failure
	SecondsSinceSuccess() float64
	Snapshot() *snapshot.Snapshot
	SnapshotStatus() string
	SnapshotSummary() string
	Features() config.FeaturesConfig
	SetAutoTriggers(bool)
	SetCombatAdvice(bool)
	SetMultiRecommendations(bool)
	SetShowSnapshot(bool)
}

// History lists logged advice. *store.Store satisfies it.
type History interface {
	RecentAdvice(limit int) ([]*store.AdviceEntry, error)
}

// Model is the main TUI model.
type Model struct {
	engine  Engine
	history History
	eventCh <-chan core.Event
	poll    time.Duration

	view     View
	width    int
	height   int
	showHelp bool

	spinner  spinner.Model
	net      NetIndicator
	viewport viewport.Model
	entries  []*store.AdviceEntry

	err error
}

// EventMsg wraps a core event for the TUI.
type EventMsg struct {
	Event core.Event
}

type pollMsg struct{}

type historyMsg struct {
	entries []*store.AdviceEntry
	err     error
}

// New creates a new TUI model. history may be nil when no advice log is open.
func New(engine Engine, history History, eventCh <-chan core.Event, poll time.Duration) Model {
	if poll <= 0 {
		poll = constants.TickInterval
	}
	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"◐", "◓", "◑", "◒"},
		FPS:    time.Second / 8,
	}
	sp.Style = lipgloss.NewStyle().Foreground(colorBrand)

	return Model{
		engine:   engine,
		history:  history,
		eventCh:  eventCh,
		poll:     poll,
		view:     ViewMain,
		spinner:  sp,
		net:      NewNetIndicator(),
		viewport: viewport.New(0, 0),
	}
}

// Init starts polling, animations and the event listener.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.schedulePoll(),
		m.spinner.Tick,
		m.net.Init(),
		m.listenForEvents(),
	)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width - 2
		m.viewport.Height = bodyHeight(msg.Height)
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case pollMsg:
		m.engine.Tick()
		if m.view == ViewSnapshot {
			m.refreshViewport()
		}
		return m, m.schedulePoll()

	case EventMsg:
		m.handleEvent(msg.Event)
		cmds := []tea.Cmd{m.listenForEvents()}
		if m.view == ViewHistory && isTerminal(msg.Event.Type) {
			cmds = append(cmds, m.loadHistory())
		}
		return m, tea.Batch(cmds...)

	case historyMsg:
		m.entries, m.err = msg.entries, msg.err
		m.refreshViewport()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case NetIndicatorTickMsg:
		var cmd tea.Cmd
		m.net, cmd = m.net.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, keys.Help) {
		m.showHelp = !m.showHelp
		return m, nil
	}
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, keys.Escape):
		m.setView(ViewMain)

	case key.Matches(msg, keys.Request):
		m.err = m.engine.RequestManual()

	case key.Matches(msg, keys.Auto):
		m.engine.SetAutoTriggers(!m.engine.Features().AutoTriggers)

	case key.Matches(msg, keys.Combat):
		m.engine.SetCombatAdvice(!m.engine.Features().CombatAdvice)

	case key.Matches(msg, keys.Multi):
		m.engine.SetMultiRecommendations(!m.engine.Features().MultiRecommendations)

	case key.Matches(msg, keys.Snapshot):
		if m.view == ViewSnapshot {
			m.setView(ViewMain)
		} else {
			m.setView(ViewSnapshot)
		}

	case key.Matches(msg, keys.History):
		if m.view == ViewHistory {
			m.setView(ViewMain)
			return m, nil
		}
		m.setView(ViewHistory)
		return m, m.loadHistory()

	case key.Matches(msg, keys.Up, keys.Down, keys.PageUp, keys.PageDown):
		if m.view != ViewMain {
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m *Model) setView(v View) {
	m.view = v
	m.engine.SetShowSnapshot(v == ViewSnapshot)
	m.refreshViewport()
	m.viewport.GotoTop()
}

func (m *Model) refreshViewport() {
	switch m.view {
	case ViewSnapshot:
		m.viewport.SetContent(renderSnapshot(m.engine.Snapshot(), m.viewport.Width))
	case ViewHistory:
		m.viewport.SetContent(renderHistory(m.entries, m.viewport.Width))
	}
}

func (m *Model) handleEvent(event core.Event) {
	switch event.Type {
	case core.EventNetworkLLM:
		m.net.SetActive(true)
	case core.EventNetworkIdle, core.EventRequestCancelled, core.EventRunEnded:
		m.net.SetActive(false)
	case core.EventRequestCompleted:
		m.err = nil
	}
}

func isTerminal(t core.EventType) bool {
	return t == core.EventRequestCompleted || t == core.EventRequestFailed
}

func (m Model) schedulePoll() tea.Cmd {
	return tea.Tick(m.poll, func(time.Time) tea.Msg {
		return pollMsg{}
	})
}

func (m Model) listenForEvents() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-m.eventCh
		if !ok {
			return nil
		}
		return EventMsg{Event: event}
	}
}

func (m Model) loadHistory() tea.Cmd {
	h := m.history
	return func() tea.Msg {
		if h == nil {
			return historyMsg{}
		}
		entries, err := h.RecentAdvice(constants.RecentAdviceLimit)
		return historyMsg{entries: entries, err: err}
	}
}

// Key bindings
var keys = struct {
	Quit     key.Binding
	Help     key.Binding
	Escape   key.Binding
	Request  key.Binding
	Auto     key.Binding
	Combat   key.Binding
	Multi    key.Binding
	Snapshot key.Binding
	History  key.Binding
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
}{
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c")),
	Help:     key.NewBinding(key.WithKeys("?")),
	Escape:   key.NewBinding(key.WithKeys("esc")),
	Request:  key.NewBinding(key.WithKeys("r")),
	Auto:     key.NewBinding(key.WithKeys("a")),
	Combat:   key.NewBinding(key.WithKeys("c")),
	Multi:    key.NewBinding(key.WithKeys("m")),
	Snapshot: key.NewBinding(key.WithKeys("d")),
	History:  key.NewBinding(key.WithKeys("h")),
	Up:       key.NewBinding(key.WithKeys("up", "k")),
	Down:     key.NewBinding(key.WithKeys("down", "j")),
	PageUp:   key.NewBinding(key.WithKeys("pgup")),
	PageDown: key.NewBinding(key.WithKeys("pgdown")),
}
