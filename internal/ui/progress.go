// Package ui renders batch progress in the terminal.
package ui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"gqlembed/internal/driver"
)

// maxRows bounds the file list; finished files scroll away first.
const maxRows = 8

type progressModel struct {
	title   string
	root    string
	events  <-chan driver.Event
	spinner spinner.Model
	prog    progress.Model
	items   []fileItem
	index   map[string]int
	stage   driver.Stage
	errors  int
	seq     int
	width   int
	done    bool
}

type fileItem struct {
	path   string
	stage  driver.Stage
	status driver.Status
	// seq orders rows by last update
	seq int
}

type eventMsg driver.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that follows pipeline events
// until the channel is closed. Paths are shown relative to root.
func NewProgressModel(title, root string, files []string, events <-chan driver.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	items := make([]fileItem, 0, len(files))
	index := make(map[string]int, len(files))
	for i, file := range files {
		items = append(items, fileItem{path: file, status: driver.StatusQueued})
		index[file] = i
	}
	return &progressModel{
		title:   title,
		root:    root,
		events:  events,
		spinner: sp,
		prog:    prog,
		items:   items,
		index:   index,
		stage:   driver.StageExtract,
		width:   80,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(driver.Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil
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
			m.prog.Width = max(msg.Width-4, 10)
		}
		return m, nil
	case progress.FrameMsg:
		pm, cmd := m.prog.Update(msg)
		m.prog = pm.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	if len(m.items) == 0 {
		return ""
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := fmt.Sprintf("%s (%s)", m.title, m.stage)
	if m.done {
		header = "done: " + m.title
	} else {
		header = m.spinner.View() + " " + header
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n")
	finished := 0
	for _, it := range m.items {
		if it.stage == m.stage && (it.status == driver.StatusDone || it.status == driver.StatusError) {
			finished++
		}
	}
	counts := fmt.Sprintf("%d/%d files", finished, len(m.items))
	if m.errors > 0 {
		counts += ", " + styleStatus(driver.StatusError).Render(fmt.Sprintf("%d with errors", m.errors))
	}
	b.WriteString("  " + counts + "\n\n")

	nameWidth := max(m.width-16, 20)
	for _, it := range m.visible() {
		label := fmt.Sprintf("%10s", statusLabel(it))
		b.WriteString("  " + styleStatus(it.status).Render(label) + " " + truncate(m.display(it.path), nameWidth) + "\n")
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")
	return b.String()
}

// visible returns the rows to draw: files in flight first, then the most
// recently finished ones.
func (m *progressModel) visible() []fileItem {
	var working, recent []fileItem
	for _, it := range m.items {
		switch {
		case it.status == driver.StatusWorking:
			working = append(working, it)
		case it.seq > 0:
			recent = append(recent, it)
		}
	}
	// последние обновлённые сверху
	for i := 1; i < len(recent); i++ {
		for j := i; j > 0 && recent[j].seq > recent[j-1].seq; j-- {
			recent[j], recent[j-1] = recent[j-1], recent[j]
		}
	}
	rows := append(working, recent...)
	if len(rows) > maxRows {
		rows = rows[:maxRows]
	}
	return rows
}

func (m *progressModel) display(path string) string {
	if m.root == "" {
		return path
	}
	if rel, err := filepath.Rel(m.root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return path
}

func (m *progressModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) applyEvent(ev driver.Event) tea.Cmd {
	if ev.Stage != m.stage && ev.Status != driver.StatusQueued {
		// новая стадия начинается с чистого счёта
		m.stage = ev.Stage
		m.errors = 0
	}
	idx, ok := m.index[ev.File]
	if !ok {
		return nil
	}
	m.seq++
	it := &m.items[idx]
	it.stage, it.status, it.seq = ev.Stage, ev.Status, m.seq
	if ev.Status == driver.StatusError {
		m.errors++
	}
	return m.prog.SetPercent(m.percent())
}

// percent counts extraction as the first half of the run.
func (m *progressModel) percent() float64 {
	total := 0.0
	for _, it := range m.items {
		total += itemProgress(it)
	}
	return total / float64(len(m.items))
}

func itemProgress(it fileItem) float64 {
	finished := it.status == driver.StatusDone || it.status == driver.StatusError
	switch it.stage {
	case driver.StageExtract:
		if finished {
			return 0.5
		}
		if it.status == driver.StatusWorking {
			return 0.25
		}
	case driver.StageValidate, driver.StageTypegen:
		if finished {
			return 1
		}
		return 0.75
	}
	return 0
}

func statusLabel(it fileItem) string {
	if it.status != driver.StatusWorking {
		return string(it.status)
	}
	switch it.stage {
	case driver.StageExtract:
		return "extracting"
	case driver.StageValidate:
		return "validating"
	case driver.StageTypegen:
		return "generating"
	}
	return string(it.stage)
}

func styleStatus(status driver.Status) lipgloss.Style {
	switch status {
	case driver.StatusDone:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case driver.StatusError:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case driver.StatusWorking:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
}

func truncate(value string, width int) string {
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	// начало пути обычно общее, обрезаем слева
	runes := []rune(value)
	for i := range runes {
		tail := string(runes[i:])
		if runewidth.StringWidth(tail)+3 <= width {
			return "..." + tail
		}
	}
	return runewidth.Truncate(value, width, "")
}
