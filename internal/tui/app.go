// Package tui provides the interactive Bubble Tea editor for costfall.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/theirongolddev/costfall/internal/cli"
	"github.com/theirongolddev/costfall/internal/model"
	"github.com/theirongolddev/costfall/internal/pipeline"
	"github.com/theirongolddev/costfall/internal/review"
	"github.com/theirongolddev/costfall/internal/tui/components"
	"github.com/theirongolddev/costfall/internal/tui/theme"
)

// LoadFunc builds the workspace, reporting file parsing progress.
type LoadFunc func(progress pipeline.ProgressFunc) (*review.Workspace, error)

// Options configure the App.
type Options struct {
	Load      LoadFunc
	Committer review.Committer
	Currency  string
	// Threshold hides franchise impacts smaller than this many percent.
	Threshold decimal.Decimal
}

// ProgressMsg reports file parsing progress.
type ProgressMsg struct {
	Current int
	Total   int
}

// LoadedMsg is sent when the workspace is ready or failed to load.
type LoadedMsg struct {
	Workspace *review.Workspace
	Err       error
	LoadTime  time.Duration
}

// CommittedMsg is sent when a background commit finishes.
type CommittedMsg struct {
	Snapshot model.Snapshot
	Err      error
}

const (
	tabWaterfall = iota
	tabMatrix
	tabReview
)

// App is the root Bubble Tea model.
type App struct {
	opts Options

	// Data
	ws       *review.Workspace
	loaded   bool
	loadErr  error
	loadTime time.Duration

	// Derived from ws after every mutation
	state   *model.State
	totals  pipeline.Result
	changes review.ChangeSet
	issues  []review.Issue

	// UI state
	width     int
	height    int
	activeTab int
	showHelp  bool
	status    string
	statusErr bool

	matrix     matrixState
	reviewTab  reviewState
	committing bool

	// Loading, channel-based progress subscription
	spinner     spinner.Model
	progress    int
	progressMax int
	loadSub     chan tea.Msg
}

const (
	minTerminalWidth = 80
	maxContentWidth  = 180
	minContentHeight = 5
)

// NewApp creates the root model. Loading starts in Init.
func NewApp(opts Options) App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Active.Accent)

	return App{
		opts:    opts,
		spinner: sp,
		loadSub: make(chan tea.Msg, 16),
	}
}

// Init implements tea.Model.
func (a App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, loadCmd(a.opts.Load, a.loadSub))
}

// refresh recomputes everything the views read from the workspace.
func (a *App) refresh() {
	a.state = a.ws.State()
	a.totals = a.ws.Totals()
	a.changes = a.ws.Review()
	a.issues = a.ws.Readiness()
	a.matrix.clamp(a.state)
	a.reviewTab.clamp(len(a.changeLines()))
}

func (a *App) setStatus(msg string, isErr bool) {
	a.status = msg
	a.statusErr = isErr
}

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case ProgressMsg:
		a.progress = msg.Current
		a.progressMax = msg.Total
		return a, waitForLoadMsg(a.loadSub)

	case LoadedMsg:
		a.loaded = true
		a.loadTime = msg.LoadTime
		if msg.Err != nil {
			a.loadErr = msg.Err
			return a, nil
		}
		a.ws = msg.Workspace
		a.refresh()
		return a, nil

	case CommittedMsg:
		a.committing = false
		if msg.Err != nil {
			a.setStatus("commit failed: "+msg.Err.Error(), true)
		} else {
			a.ws.Adopt(msg.Snapshot)
			a.setStatus("committed snapshot "+shortID(msg.Snapshot.ID), false)
		}
		a.refresh()
		return a, nil

	case spinner.TickMsg:
		if a.loaded {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case tea.MouseMsg:
		if !a.ready() || a.showHelp || a.matrix.editing {
			return a, nil
		}
		if msg.Button == tea.MouseButtonLeft && msg.Action == tea.MouseActionPress && msg.Y == 0 {
			if tab := a.tabAtX(msg.X); tab >= 0 {
				a.activeTab = tab
			}
		}
		return a, nil

	case tea.KeyMsg:
		key := msg.String()

		if key == "ctrl+c" {
			return a, tea.Quit
		}
		if !a.ready() {
			if a.loaded && (key == "q" || key == "esc") {
				return a, tea.Quit
			}
			return a, nil
		}

		// The cell editor owns the keyboard while open.
		if a.activeTab == tabMatrix && a.matrix.editing {
			return a.updateCellInput(msg)
		}

		if key == "?" {
			a.showHelp = !a.showHelp
			return a, nil
		}
		if a.showHelp {
			a.showHelp = false
			return a, nil
		}

		switch key {
		case "q":
			return a, tea.Quit
		case "tab":
			a.activeTab = (a.activeTab + 1) % len(components.Tabs)
			return a, nil
		case "shift+tab":
			a.activeTab = (a.activeTab + len(components.Tabs) - 1) % len(components.Tabs)
			return a, nil
		}
		if len(msg.Runes) == 1 {
			if idx := components.TabIdxByKey(msg.Runes[0]); idx >= 0 {
				a.activeTab = idx
				return a, nil
			}
		}

		// The workspace is frozen until the save lands.
		if a.committing {
			return a, nil
		}

		switch a.activeTab {
		case tabMatrix:
			return a.updateMatrix(msg)
		case tabReview:
			return a.updateReview(msg)
		}
		return a, nil
	}

	return a, nil
}

func (a App) ready() bool {
	return a.loaded && a.loadErr == nil
}

func (a App) money(d decimal.Decimal) string {
	return cli.FormatMoney(d, a.opts.Currency)
}

func (a App) delta(d decimal.Decimal) string {
	return cli.FormatDelta(d, a.opts.Currency)
}

func (a App) contentWidth() int {
	return min(a.width, maxContentWidth)
}

// View implements tea.Model.
func (a App) View() string {
	if a.width == 0 {
		return ""
	}
	if a.width < minTerminalWidth {
		return a.viewTooNarrow()
	}
	if !a.loaded {
		return a.viewLoading()
	}
	if a.loadErr != nil {
		return a.viewLoadError()
	}
	if a.showHelp {
		return a.viewHelp()
	}
	return a.viewMain()
}

func (a App) viewTooNarrow() string {
	h := max(a.height, 5)
	msg := fmt.Sprintf("\n  Terminal too narrow (%d cols)\n\n  costfall needs at least %d columns.\n",
		a.width, minTerminalWidth)
	return padHeight(truncateHeight(msg, h), h)
}

func (a App) overlayCard(body string) string {
	t := theme.Active
	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Background(t.Surface).
		Padding(1, 3).
		Render(body)
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, card,
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) viewLoading() string {
	t := theme.Active
	logo := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface).Bold(true)
	sub := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	count := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface)

	var b strings.Builder
	b.WriteString(logo.Render("◈ costfall"))
	b.WriteString(sub.Render(" · cost waterfall"))
	b.WriteString("\n\n")

	if a.progressMax > 0 {
		barW := min(max(a.width-30, 20), 40)
		b.WriteString(a.spinner.View())
		b.WriteString(sub.Render(" Parsing scenario\n\n"))
		b.WriteString(components.ProgressBar(float64(a.progress)/float64(a.progressMax), barW))
		b.WriteString("\n")
		b.WriteString(count.Render(cli.FormatCount(a.progress)))
		b.WriteString(sub.Render(" / "))
		b.WriteString(count.Render(cli.FormatCount(a.progressMax)))
	} else {
		b.WriteString(a.spinner.View())
		b.WriteString(sub.Render(" Discovering scenario files..."))
	}
	return a.overlayCard(b.String())
}

func (a App) viewLoadError() string {
	t := theme.Active
	title := lipgloss.NewStyle().Foreground(t.Red).Background(t.Surface).Bold(true)
	body := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface).Width(min(a.width-20, 70))
	return a.overlayCard(title.Render("Could not load scenario") + "\n\n" +
		body.Render(a.loadErr.Error()) + "\n\n" + body.Render("Press q to quit"))
}

type binding struct{ key, desc string }

var helpSections = []struct {
	title    string
	bindings []binding
}{
	{"Navigation", []binding{
		{"w m r", "Jump to tab"},
		{"tab", "Next tab"},
		{"↑↓←→ hjkl", "Move in the matrix"},
		{"[ ]", "Previous / next pool"},
	}},
	{"Matrix", []binding{
		{"enter", "Edit cell, enter again to save"},
		{"esc", "Discard the draft"},
		{"x", "Clamp cell to its overlap cap"},
		{"d", "Clear cell"},
	}},
	{"Review", []binding{
		{"a", "Acknowledge the change set"},
		{"c", "Commit acknowledged changes"},
		{"U", "Undo every uncommitted edit"},
		{"j k", "Scroll changes"},
	}},
}

func (a App) viewHelp() string {
	t := theme.Active
	title := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface).Bold(true)
	section := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	keyStyle := lipgloss.NewStyle().Foreground(t.Cyan).Background(t.Surface).Bold(true)
	desc := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	dim := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	var b strings.Builder
	b.WriteString(title.Render("◈ Keyboard Shortcuts"))
	b.WriteString("\n")
	for _, s := range helpSections {
		b.WriteString("\n")
		b.WriteString(section.Render(s.title))
		b.WriteString("\n")
		for _, bind := range s.bindings {
			fmt.Fprintf(&b, "  %s  %s\n", keyStyle.Render(fmt.Sprintf("%-10s", bind.key)), desc.Render(bind.desc))
		}
	}
	b.WriteString("\n")
	b.WriteString(dim.Render("Press any key to close"))
	return a.overlayCard(b.String())
}

func (a App) viewMain() string {
	t := theme.Active
	w := a.width
	cw := a.contentWidth()
	h := a.height

	badge := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface).
		Render(fmt.Sprintf("%d units · %d pools ", len(a.state.Units), len(a.state.Pools)))
	header := components.RenderTabBar(a.activeTab, badge, w)

	statusBar := components.RenderStatusBar(w, components.Status{
		Changes:  a.changes.Len(),
		Acked:    a.ws.Acknowledged(),
		Blocking: len(review.Blocking(a.issues)),
		Baseline: shortID(a.changes.BaselineID),
		Message:  a.status,
		IsError:  a.statusErr,
	})

	contentH := max(h-lipgloss.Height(header)-lipgloss.Height(statusBar), minContentHeight)

	var content string
	switch a.activeTab {
	case tabWaterfall:
		content = a.renderWaterfallTab(cw)
	case tabMatrix:
		content = a.renderMatrixTab(cw)
	case tabReview:
		content = a.renderReviewTab(cw, contentH)
	}

	content = padHeight(truncateHeight(content, contentH), contentH)
	content = fillLinesWithBackground(content, cw, t.Background)
	content = lipgloss.Place(w, contentH, lipgloss.Center, lipgloss.Top, content,
		lipgloss.WithWhitespaceBackground(t.Background))

	output := lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
	return lipgloss.Place(w, h, lipgloss.Left, lipgloss.Top, output,
		lipgloss.WithWhitespaceBackground(t.Background))
}

// ─── Commands ───────────────────────────────────────────────────

// loadCmd builds the workspace in a background goroutine. It streams
// ProgressMsg updates and a final LoadedMsg through sub.
func loadCmd(load LoadFunc, sub chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		go func() {
			start := time.Now()
			// Non-blocking send so parse workers are never stalled by the UI.
			progressFn := func(current, total int) {
				select {
				case sub <- ProgressMsg{Current: current, Total: total}:
				default:
				}
			}
			ws, err := load(progressFn)
			sub <- LoadedMsg{Workspace: ws, Err: err, LoadTime: time.Since(start)}
		}()
		return <-sub
	}
}

// waitForLoadMsg blocks until the next message arrives from the loader goroutine.
func waitForLoadMsg(sub chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-sub
	}
}

// saveCmd persists a prepared snapshot. It never touches the workspace;
// the snapshot is adopted when CommittedMsg comes back.
func saveCmd(c review.Committer, snap model.Snapshot) tea.Cmd {
	return func() tea.Msg {
		if c == nil {
			return CommittedMsg{Snapshot: snap}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := c.SaveSnapshot(ctx, snap); err != nil {
			return CommittedMsg{Err: errors.Wrap(err, "save snapshot")}
		}
		return CommittedMsg{Snapshot: snap}
	}
}

// ─── Helpers ────────────────────────────────────────────────────

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncStr(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

func truncateHeight(s string, limit int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= limit {
		return s
	}
	return strings.Join(lines[:limit], "\n")
}

func padHeight(s string, h int) string {
	lines := strings.Split(s, "\n")
	if len(lines) >= h {
		return s
	}
	return s + strings.Repeat("\n", h-len(lines))
}

// fillLinesWithBackground pads each line to width w with the background
// color so gaps between cards are painted.
func fillLinesWithBackground(s string, w int, bg lipgloss.Color) string {
	lines := strings.Split(s, "\n")
	var result strings.Builder
	for i, line := range lines {
		result.WriteString(lipgloss.PlaceHorizontal(w, lipgloss.Left, line,
			lipgloss.WithWhitespaceBackground(bg)))
		if i < len(lines)-1 {
			result.WriteString("\n")
		}
	}
	return result.String()
}

// ─── Mouse Support ──────────────────────────────────────────────

// tabAtX returns the tab index at the given X coordinate, or -1 if none.
// Hitboxes use the same width rules as RenderTabBar.
func (a App) tabAtX(x int) int {
	pos := 0
	for i, tab := range components.Tabs {
		tabW := components.TabVisualWidth(tab, i == a.activeTab)
		if x >= pos && x < pos+tabW {
			return i
		}
		pos += tabW + 1
	}
	return -1
}
