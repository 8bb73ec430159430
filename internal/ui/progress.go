// Package ui renders pipeline progress in the terminal.
package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"iljit/internal/pipeline"
)

// verbs name what a stage is doing while an item is in it.
var verbs = map[pipeline.Stage]string{
	pipeline.StageLoad:    "loading",
	pipeline.StageBuild:   "building",
	pipeline.StageCompile: "compiling",
	pipeline.StageEmit:    "emitting",
}

// weights is the share of an item's work finished once it enters a stage.
var weights = map[pipeline.Stage]float64{
	pipeline.StageLoad:    0.2,
	pipeline.StageBuild:   0.4,
	pipeline.StageCompile: 0.7,
	pipeline.StageEmit:    0.9,
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	workingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	idleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	faintStyle   = lipgloss.NewStyle().Faint(true)
)

const statusWidth = 12

type row struct {
	name    string
	stage   pipeline.Stage
	status  pipeline.Status
	elapsed time.Duration
}

// label is what the status column shows.
func (r row) label() string {
	if r.status == pipeline.StatusWorking {
		return verbs[r.stage]
	}
	return string(r.status)
}

func (r row) style() lipgloss.Style {
	switch r.status {
	case pipeline.StatusDone, pipeline.StatusCached:
		return okStyle
	case pipeline.StatusError:
		return failStyle
	case pipeline.StatusWorking:
		return workingStyle
	}
	return idleStyle
}

// finished reports whether the row needs no more work.
func (r row) finished() bool {
	switch r.status {
	case pipeline.StatusDone, pipeline.StatusCached, pipeline.StatusError:
		return true
	}
	return false
}

type progressModel struct {
	title   string
	events  <-chan pipeline.Event
	spinner spinner.Model
	bar     progress.Model
	rows    []row
	byName  map[string]int
	stage   pipeline.Stage // last stage the pipeline as a whole announced
	width   int
	done    bool
}

type eventMsg pipeline.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders pipeline events
// until the channel closes. Rows appear in the order their items are first
// seen.
func NewProgressModel(title string, events <-chan pipeline.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = workingStyle

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 76

	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		bar:     bar,
		byName:  make(map[string]int),
		width:   80,
	}
}

// Run drives the model on out until events closes.
func Run(title string, events <-chan pipeline.Event, out io.Writer) error {
	_, err := tea.NewProgram(NewProgressModel(title, events), tea.WithOutput(out), tea.WithInput(nil)).Run()
	return err
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.next())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		return m, tea.Batch(m.apply(pipeline.Event(msg)), m.next())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.bar.Width = msg.Width - 4
		}
	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) next() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) apply(ev pipeline.Event) tea.Cmd {
	if ev.Item == "" {
		if ev.Status == pipeline.StatusWorking {
			m.stage = ev.Stage
		}
		return nil
	}
	i, ok := m.byName[ev.Item]
	if !ok {
		i = len(m.rows)
		m.byName[ev.Item] = i
		m.rows = append(m.rows, row{name: ev.Item})
	}
	r := &m.rows[i]
	if r.status == pipeline.StatusError {
		return nil // a failed item stays failed
	}
	r.stage, r.status = ev.Stage, ev.Status
	if ev.Elapsed > 0 {
		r.elapsed += ev.Elapsed
	}
	return m.bar.SetPercent(m.percent())
}

// percent averages the rows. A finished row counts fully; one still in
// flight counts the weight of its stage.
func (m *progressModel) percent() float64 {
	if len(m.rows) == 0 {
		return 0
	}
	total := 0.0
	for _, r := range m.rows {
		if r.finished() {
			total++
		} else if r.status == pipeline.StatusWorking {
			total += weights[r.stage]
		}
	}
	return total / float64(len(m.rows))
}

// counts tallies finished rows by status.
func (m *progressModel) counts() (done, cached, failed int) {
	for _, r := range m.rows {
		switch r.status {
		case pipeline.StatusDone:
			done++
		case pipeline.StatusCached:
			cached++
		case pipeline.StatusError:
			failed++
		}
	}
	return
}

func (m *progressModel) View() string {
	header := m.title
	if verb := verbs[m.stage]; verb != "" {
		header = fmt.Sprintf("%s (%s)", header, verb)
	}
	if m.done {
		header = "done: " + header
	} else {
		header = m.spinner.View() + " " + header
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	nameWidth := max(m.width-statusWidth-14, 20)
	for _, r := range m.rows {
		status := r.style().Render(fmt.Sprintf("%*s", statusWidth, r.label()))
		fmt.Fprintf(&b, "  %s %s", status, truncate(r.name, nameWidth))
		if r.finished() && r.elapsed > 0 {
			b.WriteString(faintStyle.Render(fmt.Sprintf(" %s", r.elapsed.Round(time.Microsecond))))
		}
		b.WriteByte('\n')
	}

	b.WriteByte('\n')
	if m.done {
		b.WriteString(m.bar.ViewAs(1.0))
		done, cached, failed := m.counts()
		summary := fmt.Sprintf("%d done, %d cached", done, cached)
		if failed > 0 {
			summary += ", " + failStyle.Render(fmt.Sprintf("%d failed", failed))
		}
		b.WriteString("\n" + summary)
	} else {
		b.WriteString(m.bar.View())
	}
	b.WriteByte('\n')
	return b.String()
}

// truncate shortens value to width terminal cells, ending in "..." when
// there is room for it.
func truncate(value string, width int) string {
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return value
	}
	tail := "..."
	if width <= len(tail) {
		tail = ""
	}
	return runewidth.Truncate(value, width, tail)
}
