package tui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// NetIndicator is a bouncing bar shown while a model request is in flight.
type NetIndicator struct {
	active    bool
	position  int
	direction int
	width     int
}

// NetIndicatorTickMsg animates the indicator.
type NetIndicatorTickMsg time.Time

// NewNetIndicator creates an idle indicator.
func NewNetIndicator() NetIndicator {
	return NetIndicator{direction: 1, width: 10}
}

// SetActive starts or stops the animation.
func (n *NetIndicator) SetActive(active bool) {
	n.active = active
	if !active {
		n.position, n.direction = 0, 1
	}
}

// Active reports whether a request is shown as in flight.
func (n NetIndicator) Active() bool {
	return n.active
}

// Update moves the ball on every tick.
func (n NetIndicator) Update(msg tea.Msg) (NetIndicator, tea.Cmd) {
	if _, ok := msg.(NetIndicatorTickMsg); !ok {
		return n, nil
	}
	if n.active {
		n.position += n.direction
		if n.position >= n.width-1 {
			n.position = n.width - 1
			n.direction = -1
		} else if n.position <= 0 {
			n.position = 0
			n.direction = 1
		}
	}
	return n, n.tick()
}

func (n NetIndicator) tick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return NetIndicatorTickMsg(t)
	})
}

// Init starts the animation.
func (n NetIndicator) Init() tea.Cmd {
	return n.tick()
}

// View renders the indicator.
func (n NetIndicator) View() string {
	const (
		barEmpty  = "░"
		barFilled = "█"
	)
	if !n.active {
		return lipgloss.NewStyle().Foreground(colorMuted).Render("◇ IDLE " + strings.Repeat(barEmpty, n.width))
	}
	var b strings.Builder
	for i := 0; i < n.width; i++ {
		if i >= n.position-1 && i <= n.position+1 {
			b.WriteString(barFilled)
		} else {
			b.WriteString(barEmpty)
		}
	}
	return lipgloss.NewStyle().Foreground(colorBrand).Bold(true).Render("◆ LLM  " + b.String())
}
