package app

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sys/unix"

	"invoicehound/search"
)

// Styles (shared with the CLI usage/version output)
var (
	appStyle = lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7aa2f7"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7aa2f7"))

	subHeaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7dcfff")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#a9b1d6"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9ece6a")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e0af68")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f7768e")).
			Bold(true)
)

const logTailSize = 8

type model struct {
	engine     *search.Engine
	identifier string
	outputDir  string

	// live run state
	progressText string
	logTail      []string
	found        []*search.FoundInvoice
	summary      *search.Summary

	cancelling bool
	quitting   bool
	startWall  time.Time

	width  int
	height int

	memUsageText string
}

type eventMsg struct{ ev search.Event }
type eventsClosedMsg struct{}
type memUsageMsg struct{ Text string }

// Run drives a started engine with the full-screen TUI and returns the
// final summary.
func Run(engine *search.Engine, identifier, outputDir string) (*search.Summary, error) {
	m := model{
		engine:     engine,
		identifier: identifier,
		outputDir:  outputDir,
		startWall:  time.Now(),
	}
	out, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		return nil, err
	}
	final := out.(model)
	return final.summary, nil
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.waitForEvent(), m.memUsageTick())
}

func (m model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.engine.Events()
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{ev}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.summary != nil {
				m.quitting = true
				return m, tea.Quit
			}
			// Run still going: ask it to stop and keep draining until
			// the done event arrives.
			m.cancelling = true
			m.engine.Cancel()
			return m, nil
		case "enter":
			if m.summary != nil {
				m.quitting = true
				return m, tea.Quit
			}
		}
		return m, nil

	case eventMsg:
		switch msg.ev.Kind {
		case search.EventProgress:
			m.progressText = fmt.Sprintf("%s [%d/%d]", msg.ev.Folder, msg.ev.Processed, msg.ev.Total)
		case search.EventLog:
			m.logTail = append(m.logTail, msg.ev.Message)
			if len(m.logTail) > logTailSize {
				m.logTail = m.logTail[len(m.logTail)-logTailSize:]
			}
		case search.EventFound:
			m.found = append(m.found, msg.ev.Found)
		case search.EventDone:
			m.summary = msg.ev.Summary
		}
		return m, m.waitForEvent()

	case eventsClosedMsg:
		return m, nil

	case memUsageMsg:
		m.memUsageText = msg.Text
		return m, m.memUsageTick()
	}
	return m, nil
}

func (m model) View() string {
	width := m.width
	height := m.height
	if width <= 0 {
		width = 120
	}
	if height <= 0 {
		height = 30
	}

	if m.quitting {
		return "Goodbye!\n"
	}

	var headerLines []string
	headerLines = append(headerLines, headerStyle.Render("INVOICEHOUND"))
	headerLines = append(headerLines, subHeaderStyle.Render("🔍 NIP: "+m.identifier))
	headerLines = append(headerLines, infoStyle.Render("📁 Output: "+m.outputDir))

	engineLine := fmt.Sprintf("⚙️ Found: %d%s", len(m.found), m.memUsageText)
	headerLines = append(headerLines, lipgloss.NewStyle().Foreground(lipgloss.Color("#bb9af7")).Render(engineLine))

	var elapsed time.Duration
	if m.summary != nil {
		elapsed = m.summary.Duration
	} else {
		elapsed = time.Since(m.startWall)
	}
	headerLines = append(headerLines, warningStyle.Render(fmt.Sprintf("⏱️ Elapsed: %.1f s", elapsed.Seconds())))

	var parts []string
	parts = append(parts, strings.Join(headerLines, "\n"))

	// Progress line (reserved even when idle so the box stays put)
	switch {
	case m.cancelling && m.summary == nil:
		parts = append(parts, errorStyle.Render("⏳ Cancelling, finishing current message..."))
	case m.summary == nil:
		txt := "⏳ Searching"
		if m.progressText != "" {
			txt = "⏳ " + m.progressText
		}
		parts = append(parts, subHeaderStyle.Render(txt))
	default:
		parts = append(parts, m.summaryLine())
	}

	headerHeight := strings.Count(parts[0], "\n") + 1
	chromeHeight := 4
	contentHeight := height - headerHeight - 3 - chromeHeight
	if contentHeight < 1 {
		contentHeight = 1
	}

	parts = append(parts, appStyle.Width(width-4).Height(contentHeight).Render(m.boxContent(contentHeight)))

	footer := lipgloss.NewStyle().Foreground(lipgloss.Color("240")).
		Render("🔚 'q' cancel/quit • 'ENTER' close when done")
	parts = append(parts, footer)

	return strings.Join(parts, "\n")
}

func (m model) summaryLine() string {
	s := m.summary
	switch s.State {
	case search.StateCompleted:
		return successStyle.Render(fmt.Sprintf("✅ Done: %d invoice(s) in %d message(s)", s.Found, s.Checked))
	case search.StateCancelled:
		return warningStyle.Render(fmt.Sprintf("🛑 Cancelled: %d invoice(s) saved before stop", s.Found))
	default:
		return errorStyle.Render(fmt.Sprintf("❌ Failed: %v", s.Err))
	}
}

func (m model) boxContent(maxLines int) string {
	var b strings.Builder
	if len(m.found) == 0 {
		b.WriteString("No invoices found yet.\n")
	}
	for i, f := range m.found {
		line := fmt.Sprintf("%d. %s", i+1, f.Filename)
		if f.Date != "" {
			line += "  (" + f.Date + ")"
		}
		b.WriteString(successStyle.Render(line) + "\n")
		b.WriteString(infoStyle.Render("   "+f.Sender+" • "+f.Subject) + "\n")
	}
	if len(m.logTail) > 0 {
		b.WriteString("\n")
		for _, l := range m.logTail {
			b.WriteString(infoStyle.Render(l) + "\n")
		}
	}

	lines := strings.Split(strings.TrimRight(b.String(), "\n"), "\n")
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return strings.Join(lines, "\n")
}

func (m model) memUsageTick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		var rusage unix.Rusage
		_ = unix.Getrusage(unix.RUSAGE_SELF, &rusage)
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		rss := uint64(rusage.Maxrss * 1024)
		return memUsageMsg{Text: fmt.Sprintf(" • RAM %.1f MB", float64(rss)/(1024*1024))}
	})
}
