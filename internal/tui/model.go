// Package tui implements the interactive record flow: a live capture
// screen, a processing readout while the pipeline runs, and a summary
// of where the note landed.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/calegray/voxnote/internal/pipeline"
	"github.com/calegray/voxnote/internal/tui/components/labeledspinner"
	"github.com/calegray/voxnote/internal/tui/components/waveform"
	"github.com/calegray/voxnote/internal/tui/style"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	meterWidth  = 48
	meterHeight = 2

	// meterSamples is the window handed to the waveform; twenty
	// samples fold into each of the 48 columns.
	meterSamples = 960

	snapshotInterval = 100 * time.Millisecond
)

// Controller drives a recording run and reports its progress.
// *pipeline.Coordinator satisfies it. The recording must already be
// started before the model takes over.
type Controller interface {
	StopRecording(ctx context.Context) <-chan pipeline.Result
	Cancel()
	Pause() error
	Resume() error
	Snapshot() pipeline.RunStatus
	Levels(n int) []int16
}

// phase tracks which leg of the flow is on screen.
type phase int

const (
	phaseRecording phase = iota
	phaseProcessing
	phaseDone
)

// tickMsg drives the status readout while recording.
type tickMsg time.Time

// stageMsg carries a pipeline event into the program.
type stageMsg pipeline.Event

// resultMsg delivers the final outcome of the run.
type resultMsg pipeline.Result

// eventsClosedMsg reports that the event stream ended.
type eventsClosedMsg struct{}

// meterSource adapts the controller's level feed to the waveform's
// Levels control.
type meterSource struct {
	ctrl Controller
}

func (s meterSource) Read() []int16 {
	return s.ctrl.Levels(meterSamples)
}

// Model walks one voice note from live capture to its final summary.
type Model struct {
	ctx    context.Context
	ctrl   Controller
	events <-chan pipeline.Event

	keys    KeyMap
	spinner spinner.Model
	meter   waveform.Model
	bar     progress.Model
	proc    labeledspinner.Model

	phase      phase
	snap       pipeline.RunStatus
	maxBytes   int64
	paused     bool
	stopping   bool
	cancelling bool
	cancelled  bool
	result     *pipeline.Result
}

// New builds the record flow over an already-started run. events is
// the subscribed pipeline event stream; maxBytes caps the progress
// readout, zero meaning unlimited.
func New(ctx context.Context, ctrl Controller, events <-chan pipeline.Event, maxBytes int64) Model {
	s := spinner.New()
	s.Spinner = spinner.Points

	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)

	return Model{
		ctx:      ctx,
		ctrl:     ctrl,
		events:   events,
		keys:     DefaultKeyMap(),
		spinner:  s,
		meter:    waveform.New(meterSource{ctrl: ctrl}, meterWidth, meterHeight),
		bar:      p,
		proc:     labeledspinner.New(spinner.MiniDot, "Processing", "Finalizing the recording", "[esc] cancel"),
		maxBytes: maxBytes,
		snap:     ctrl.Snapshot(),
	}
}

// Init returns the initial commands for the record flow.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, m.meter.Init(), m.tick()}
	if m.events != nil {
		cmds = append(cmds, listen(m.events))
	}

	return tea.Batch(cmds...)
}

// Update handles messages for the record flow.
func (m Model) Update(teaMsg tea.Msg) (tea.Model, tea.Cmd) {
	switch typedMsg := teaMsg.(type) {
	case tea.KeyMsg:
		return m.handleKey(typedMsg)

	case tickMsg:
		if m.phase != phaseRecording {
			return m, nil
		}

		m.snap = m.ctrl.Snapshot()
		if m.snap.Limit != nil && !m.stopping {
			return m.finish()
		}

		return m, m.tick()

	case stageMsg:
		switch pipeline.Event(typedMsg).Stage {
		case pipeline.StateTranscribing:
			m.proc.Subtitle = "Transcribing audio"
		case pipeline.StateCleaning:
			m.proc.Subtitle = "Cleaning up the transcript"
		case pipeline.StatePersisting:
			m.proc.Subtitle = "Saving the note"
		}

		return m, listen(m.events)

	case resultMsg:
		res := pipeline.Result(typedMsg)
		m.result = &res
		m.phase = phaseDone

		return m, tea.Quit

	case eventsClosedMsg:
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		if m.phase == phaseProcessing {
			m.proc, cmd = m.proc.Update(typedMsg)
		} else {
			m.spinner, cmd = m.spinner.Update(typedMsg)
		}

		return m, cmd

	case waveform.TickMsg:
		if m.phase != phaseRecording {
			return m, nil
		}

		var cmd tea.Cmd
		m.meter, cmd = m.meter.Update(typedMsg)

		return m, cmd

	case progress.FrameMsg:
		progressModel, cmd := m.bar.Update(typedMsg)
		m.bar = progressModel.(progress.Model) //nolint:forcetypeassert // bubbles library contract

		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		return m.cancel()

	case key.Matches(msg, m.keys.Finish):
		if m.phase != phaseRecording {
			return m, nil
		}

		return m.finish()

	case key.Matches(msg, m.keys.Pause):
		if m.phase != phaseRecording || m.stopping {
			return m, nil
		}

		if m.paused {
			if err := m.ctrl.Resume(); err == nil {
				m.paused = false
			}
		} else if err := m.ctrl.Pause(); err == nil {
			m.paused = true
		}

		return m, nil
	}

	return m, nil
}

// finish stops the recorder and hands the take to the pipeline.
func (m Model) finish() (tea.Model, tea.Cmd) {
	if m.stopping {
		return m, nil
	}

	m.stopping = true
	m.phase = phaseProcessing
	m.proc.Subtitle = "Finalizing the recording"
	if m.snap.Limit != nil {
		m.proc.Subtitle = "Recording limit reached, finalizing"
	}

	return m, tea.Batch(awaitResult(m.ctrl.StopRecording(m.ctx)), m.proc.Init())
}

// cancel discards a live take, or asks a running pipeline to stop.
func (m Model) cancel() (tea.Model, tea.Cmd) {
	switch m.phase {
	case phaseRecording:
		m.ctrl.Cancel()
		m.cancelled = true
		m.phase = phaseDone

		return m, tea.Quit

	case phaseProcessing:
		if m.cancelling {
			// Second press abandons the wait; the run resolves in the
			// background.
			return m, tea.Quit
		}

		m.ctrl.Cancel()
		m.cancelling = true

		return m, nil
	}

	return m, tea.Quit
}

// View renders the record flow.
func (m Model) View() string {
	switch m.phase {
	case phaseProcessing:
		return m.viewProcessing()
	case phaseDone:
		return m.viewDone()
	default:
		return m.viewRecording()
	}
}

func (m Model) viewRecording() string {
	var sb strings.Builder

	if m.paused {
		sb.WriteString(style.Warning.Render("Paused"))
	} else {
		sb.WriteString(m.spinner.View())
		sb.WriteString(" ")
		sb.WriteString(style.Title.Render("Recording"))
	}

	sb.WriteString(" ")
	sb.WriteString(style.Subtitle.Render(formatElapsed(m.snap.Elapsed)))
	sb.WriteString("\n\n")

	sb.WriteString(m.meter.View())
	sb.WriteString("\n\n")

	percent := float64(0)
	if m.maxBytes > 0 {
		percent = float64(m.snap.Bytes) / float64(m.maxBytes)
	}

	sb.WriteString(m.bar.ViewAs(percent))
	sb.WriteString("\n")
	sb.WriteString(style.Subtitle.Render(formatBytes(m.snap.Bytes, m.maxBytes)))
	sb.WriteString("\n")

	if m.snap.Degraded {
		sb.WriteString(style.Warning.Render("input device was interrupted; the take may have gaps"))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(renderKeyHelp(m.keys.Pause, "  "))
	sb.WriteString(renderKeyHelp(m.keys.Finish, "  "))
	sb.WriteString(renderKeyHelp(m.keys.Cancel))

	return sb.String()
}

func (m Model) viewProcessing() string {
	if m.cancelling {
		return m.proc.ViewWithHelp("cancelling, keeping what has already been saved")
	}

	return m.proc.View()
}

func (m Model) viewDone() string {
	var sb strings.Builder

	switch {
	case m.cancelled:
		sb.WriteString(style.Warning.Render("Recording discarded."))
		sb.WriteString("\n")

	case m.result == nil:
		sb.WriteString(style.Muted.Render("Nothing recorded."))
		sb.WriteString("\n")

	case m.result.Err != nil:
		sb.WriteString(style.Error.Render("✗ " + m.result.Err.Error()))
		sb.WriteString("\n")

		if m.result.Note.ID != "" {
			sb.WriteString("\n")
			sb.WriteString(style.Muted.Render("Kept what had landed. Inspect it with: voxnote show " + m.result.Note.ID))
			sb.WriteString("\n")
		}

	default:
		n := m.result.Note

		title := n.Title
		if title == "" {
			title = n.ID
		}

		sb.WriteString(style.Success.Render("✓ Saved") + " " + style.Title.Render(title))
		sb.WriteString("\n\n")
		sb.WriteString(style.Label.Render("Length:") + " " + style.Subtitle.Render(formatElapsed(time.Duration(n.Duration*float64(time.Second)))))
		sb.WriteString("\n")
		sb.WriteString(style.Label.Render("Audio:") + "  " + style.Subtitle.Render(n.AudioFile))
		sb.WriteString("\n")

		if n.VaultPath != "" {
			sb.WriteString(style.Label.Render("Vault:") + "  " + style.Subtitle.Render(n.VaultPath))
			sb.WriteString("\n")
		}

		sb.WriteString("\n")
		sb.WriteString(style.Muted.Render("voxnote show " + n.ID))
		sb.WriteString("\n")
	}

	return sb.String()
}

// Result returns the pipeline outcome once the flow has finished.
func (m Model) Result() (pipeline.Result, bool) {
	if m.result == nil {
		return pipeline.Result{}, false
	}

	return *m.result, true
}

// Cancelled reports whether the user discarded the take while it was
// still recording.
func (m Model) Cancelled() bool {
	return m.cancelled
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(snapshotInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// listen forwards the next pipeline event into the program.
func listen(events <-chan pipeline.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}

		return stageMsg(ev)
	}
}

// awaitResult blocks a command on the run's outcome.
func awaitResult(resC <-chan pipeline.Result) tea.Cmd {
	return func() tea.Msg {
		return resultMsg(<-resC)
	}
}

func renderKeyHelp(kb key.Binding, suffix ...string) string {
	s := style.Help.Render("[") + style.Key.Render(kb.Help().Key) +
		style.Help.Render("] ") +
		style.Help.Render(kb.Help().Desc)

	s += strings.Join(suffix, "")

	return s
}

func formatElapsed(d time.Duration) string {
	total := int(d.Seconds())

	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(current, maxBytes int64) string {
	currentMB := float64(current) / (1024 * 1024)
	maxMB := float64(maxBytes) / (1024 * 1024)

	if maxBytes == 0 {
		return fmt.Sprintf("%.1f MB / unlimited", currentMB)
	}

	percent := int(float64(current) / float64(maxBytes) * 100)

	return fmt.Sprintf("%.1f MB / %.1f MB (%d%%)", currentMB, maxMB, percent)
}
