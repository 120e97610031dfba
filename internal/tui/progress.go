// Package tui renders the batch-mode progress indicator.
//
// On a terminal it runs a small bubbletea program with a spinner and a
// completed/total counter; anywhere else it degrades to plain log lines.
// Strictly informational: nothing here feeds back into dispatch.
//
// Used by: main (batch and combined modes)
package tui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/v2/spinner"
	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/lipgloss/v2"
)

var (
	counterStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	fileStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// analyzeDots carries the filename-independent part of the progress line.
var analyzeDots = spinner.Spinner{
	Frames: []string{
		"⠋ Analyzing",
		"⠙ Analyzing.",
		"⠹ Analyzing..",
		"⠸ Analyzing...",
		"⠼ Analyzing....",
		"⠴ Analyzing.....",
		"⠦ Analyzing......",
		"⠧ Analyzing.....",
		"⠇ Analyzing....",
		"⠏ Analyzing...",
		"⠏ Analyzing..",
		"⠏ Analyzing.",
	},
	FPS: time.Second / 10,
}

type fileStartedMsg struct{ filename string }

type fileDoneMsg struct {
	filename string
	done     int
}

type finishedMsg struct{}

type progressModel struct {
	spinner spinner.Model
	total   int
	done    int
	current string
}

func newProgressModel(total int) progressModel {
	s := spinner.New()
	s.Spinner = analyzeDots
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return progressModel{spinner: s, total: total}
}

// Init returns an initial command
func (m progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case fileStartedMsg:
		m.current = msg.filename
		return m, nil
	case fileDoneMsg:
		m.done = msg.done
		if m.current == msg.filename {
			m.current = ""
		}
		return m, nil
	case finishedMsg:
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

// View renders the progress line
func (m progressModel) View() tea.View {
	s := fmt.Sprintf("%s %s",
		m.spinner.View(),
		counterStyle.Render(fmt.Sprintf("%d/%d", m.done, m.total)))
	if m.current != "" {
		s += " " + fileStyle.Render(m.current)
	}
	return tea.NewView(s)
}

// Progress is the handle main drives from dispatcher callbacks. Safe for
// concurrent use; callbacks arrive from worker goroutines.
type Progress struct {
	total int

	// Terminal path.
	program *tea.Program
	runDone chan struct{}

	// Plain path.
	mu  sync.Mutex
	out io.Writer
}

// New creates a progress indicator for total files. With interactive set it
// renders the live spinner line on the terminal; otherwise it writes one
// line per completed file to out.
func New(total int, out io.Writer, interactive bool) *Progress {
	p := &Progress{total: total, out: out}
	if interactive {
		p.program = tea.NewProgram(newProgressModel(total))
		p.runDone = make(chan struct{})
	}
	return p
}

// Start launches the render loop. No-op in plain mode.
func (p *Progress) Start() {
	if p.program == nil {
		return
	}
	go func() {
		defer close(p.runDone)
		// Render errors only cost the progress line, never the run.
		p.program.Run()
	}()
}

// FileStarted reports that filename entered the pipeline.
func (p *Progress) FileStarted(filename string) {
	if p.program != nil {
		p.program.Send(fileStartedMsg{filename: filename})
	}
}

// FileDone reports a completed file and the monotonic completed count.
func (p *Progress) FileDone(filename string, done int) {
	if p.program != nil {
		p.program.Send(fileDoneMsg{filename: filename, done: done})
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "[%d/%d] %s\n", done, p.total, filename)
}

// Stop shuts the render loop down and waits for the terminal to be
// released. No-op in plain mode.
func (p *Progress) Stop() {
	if p.program == nil {
		return
	}
	p.program.Send(finishedMsg{})
	<-p.runDone
}
