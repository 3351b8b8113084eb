// Package waveform renders microphone amplitude as a bar meter.
package waveform

import (
	"math"
	"strings"
	"time"

	"github.com/calegray/voxnote/internal/tui/style"
	"github.com/calegray/voxnote/pkg/uictl"
	tea "github.com/charmbracelet/bubbletea"
)

// Eight fill steps per row, bottom to top. Index 0 is empty.
const blockChars = " ▁▂▃▄▅▆▇█"

// redrawInterval keeps the meter at roughly 20 FPS.
const redrawInterval = 50 * time.Millisecond

// TickMsg triggers a redraw.
type TickMsg struct{}

// Model renders recent audio samples as vertical bars, oldest on the
// left. Samples come through a Levels control so the component stays
// decoupled from the capture device.
type Model struct {
	levels uictl.Levels[int16]
	width  int
	height int
}

// New returns a meter that is width columns wide and height rows tall.
// Heights below one are clamped to one.
func New(levels uictl.Levels[int16], width, height int) Model {
	if height < 1 {
		height = 1
	}

	return Model{levels: levels, width: width, height: height}
}

// Init schedules the first redraw.
func (m Model) Init() tea.Cmd {
	return m.tick()
}

// Update re-arms the redraw timer on each tick.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if _, ok := msg.(TickMsg); ok {
		return m, m.tick()
	}

	return m, nil
}

// View renders the meter. Without a source, or without samples, it
// draws a flat baseline.
func (m Model) View() string {
	if m.levels == nil {
		return m.renderBaseline()
	}

	samples := m.levels.Read()
	if len(samples) == 0 {
		return m.renderBaseline()
	}

	return m.render(samples)
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(redrawInterval, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

func (m Model) render(samples []int16) string {
	levels := m.columnLevels(samples)
	runes := []rune(blockChars)

	var sb strings.Builder

	for row := 0; row < m.height; row++ {
		if row > 0 {
			sb.WriteString("\n")
		}

		var line strings.Builder

		for col := 0; col < m.width; col++ {
			line.WriteRune(runes[m.cellFill(levels[col], row)])
		}

		sb.WriteString(style.Progress.Render(line.String()))
	}

	return sb.String()
}

// columnLevels folds the sample window into one level per column, each
// in [0, height*8]. A column takes the peak of its bucket so short
// transients stay visible.
func (m Model) columnLevels(samples []int16) []int {
	levels := make([]int, m.width)
	bucket := max(1, len(samples)/m.width)
	maxLevel := m.height * 8

	for col := 0; col < m.width; col++ {
		start := col * bucket
		if start >= len(samples) {
			continue
		}

		end := min(start+bucket, len(samples))
		levels[col] = scaleAmplitude(peak(samples[start:end]), maxLevel)
	}

	return levels
}

// cellFill returns the block index (0-8) for one cell. Row 0 is the
// top row; a column's level fills rows from the bottom up, eight steps
// per row.
func (m Model) cellFill(level, row int) int {
	base := (m.height - 1 - row) * 8

	fill := level - base
	switch {
	case fill <= 0:
		return 0
	case fill >= 8:
		return 8
	default:
		return fill
	}
}

func (m Model) renderBaseline() string {
	var sb strings.Builder

	for row := 0; row < m.height; row++ {
		if row > 0 {
			sb.WriteString("\n")
		}

		ch := " "
		if row == m.height-1 {
			ch = "▁"
		}

		sb.WriteString(style.Muted.Render(strings.Repeat(ch, m.width)))
	}

	return sb.String()
}

// peak returns the largest absolute sample value.
func peak(samples []int16) int16 {
	var p int16

	for _, s := range samples {
		// -32768 has no int16 negation.
		if s == math.MinInt16 {
			return math.MaxInt16
		}

		if s < 0 {
			s = -s
		}

		if s > p {
			p = s
		}
	}

	return p
}

// scaleAmplitude maps an amplitude to [0, maxLevel]. Square-root
// scaling keeps quiet passages visible instead of pinning them to the
// bottom row.
func scaleAmplitude(amp int16, maxLevel int) int {
	if amp <= 0 {
		return 0
	}

	normalized := float64(amp) / float64(math.MaxInt16)

	return min(int(math.Sqrt(normalized)*float64(maxLevel)), maxLevel)
}
