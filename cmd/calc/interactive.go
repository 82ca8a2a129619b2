package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/wippyai/calc/engine"
	"github.com/wippyai/calc/errors"
	"github.com/wippyai/calc/keypad"
	"github.com/wippyai/calc/plugin"
)

const (
	cellWidth    = 7
	displayWidth = 5*cellWidth + 4
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	displayStyle = lipgloss.NewStyle().
			Width(displayWidth).
			Align(lipgloss.Right).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	pendingStyle = lipgloss.NewStyle().
			Width(displayWidth).
			Align(lipgloss.Right).
			Foreground(lipgloss.Color("#87CEEB"))

	cellStyle = lipgloss.NewStyle().
			Width(cellWidth).
			Align(lipgloss.Center)

	operatorStyle = cellStyle.
			Foreground(lipgloss.Color("#FF9800"))

	scientificStyle = cellStyle.
			Foreground(lipgloss.Color("#666666"))

	selectedStyle = cellStyle.
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type interactiveModel struct {
	ctx       context.Context
	engine    *engine.Engine
	host      *plugin.Host
	watcher   *plugin.Watcher
	pluginDir string
	keys      keyMap
	help      help.Model
	status    string
	err       error
	row       int
	col       int
}

type pluginChangeMsg struct{}

type pluginErrMsg struct {
	err error
}

func newInteractiveModel(ctx context.Context, e *engine.Engine, host *plugin.Host, w *plugin.Watcher, dir string) *interactiveModel {
	return &interactiveModel{
		ctx:       ctx,
		engine:    e,
		host:      host,
		watcher:   w,
		pluginDir: dir,
		keys:      defaultKeyMap(),
		help:      help.New(),
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.waitForChange()
}

// waitForChange blocks on the watcher until plugin files change.
func (m *interactiveModel) waitForChange() tea.Cmd {
	if m.watcher == nil {
		return nil
	}
	w := m.watcher
	return func() tea.Msg {
		select {
		case _, ok := <-w.Changes():
			if !ok {
				return nil
			}
			return pluginChangeMsg{}
		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			return pluginErrMsg{err: err}
		}
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width

	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case pluginChangeMsg:
		m.reload()
		return m, m.waitForChange()

	case pluginErrMsg:
		m.err = msg.err
		return m, m.waitForChange()
	}
	return m, nil
}

func (m *interactiveModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	rows := keypad.Layout(m.engine.State().ScientificPanelVisible)

	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.watcher != nil {
			m.watcher.Close()
		}
		return tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, m.keys.Up):
		if m.row > 0 {
			m.row--
		}
		m.clampCol(rows)

	case key.Matches(msg, m.keys.Down):
		if m.row < len(rows)-1 {
			m.row++
		}
		m.clampCol(rows)

	case key.Matches(msg, m.keys.Left):
		if m.col > 0 {
			m.col--
		}

	case key.Matches(msg, m.keys.Right):
		if m.col < len(rows[m.row])-1 {
			m.col++
		}

	case key.Matches(msg, m.keys.Press):
		k := rows[m.row][m.col]
		m.press(k.Press)

	case key.Matches(msg, m.keys.Toggle):
		m.press(func(e *engine.Engine) error {
			e.ToggleScientificPanel()
			return nil
		})

	case msg.Paste:
		text := string(msg.Runes)
		m.press(func(e *engine.Engine) error { return keypad.Run(e, text) })

	default:
		name := msg.String()
		m.press(func(e *engine.Engine) error { return keypad.Dispatch(e, name) })
	}
	return nil
}

// press applies fn and keeps the cursor on the same button when the
// scientific rows appear or disappear above it.
func (m *interactiveModel) press(fn func(*engine.Engine) error) {
	before := len(keypad.Layout(m.engine.State().ScientificPanelVisible))
	err := fn(m.engine)
	rows := keypad.Layout(m.engine.State().ScientificPanelVisible)

	m.row += len(rows) - before
	if m.row < 0 {
		m.row = 0
	}
	if m.row >= len(rows) {
		m.row = len(rows) - 1
	}
	m.clampCol(rows)

	if err != nil {
		var ce *errors.Error
		if stderrors.As(err, &ce) && ce.Kind == errors.KindUnknownKey {
			return
		}
		m.err = err
		return
	}
	m.err = nil
}

func (m *interactiveModel) clampCol(rows [][]keypad.Key) {
	if m.col >= len(rows[m.row]) {
		m.col = len(rows[m.row]) - 1
	}
}

func (m *interactiveModel) reload() {
	if m.host == nil {
		return
	}
	if err := loadPlugins(m.ctx, m.host, m.engine, m.pluginDir); err != nil {
		plugin.Logger().Warn("plugin reload failed", zap.Error(err))
		m.err = err
		return
	}
	m.err = nil
	m.status = fmt.Sprintf("reloaded %d plugin(s)", len(m.host.Modules()))
}

func (m *interactiveModel) View() string {
	st := m.engine.State()
	var b strings.Builder

	b.WriteString(titleStyle.Render("Calculator"))
	if m.pluginDir != "" {
		b.WriteString(" ")
		b.WriteString(m.pluginDir)
	}
	b.WriteString("\n\n")

	pending := ""
	if st.Pending() {
		pending = engine.FormatResult(st.FirstOperand, m.engine.FractionDigits()) + " " + st.Operator.Symbol()
	}
	b.WriteString(pendingStyle.Render(pending))
	b.WriteString("\n")
	b.WriteString(renderDisplay(st))
	b.WriteString("\n")

	for i, row := range keypad.Layout(st.ScientificPanelVisible) {
		cells := make([]string, len(row))
		for j, k := range row {
			cells[j] = m.styleFor(k, i, j, st.ScientificPanelVisible).Render(k.Label)
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
		b.WriteString("\n")
	}

	if ext := m.engine.Extensions(); len(ext) > 0 {
		b.WriteString("\n")
		b.WriteString(funcStyle.Render("plugins: " + strings.Join(ext, " ")))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	case m.status != "":
		b.WriteString(helpStyle.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))

	return b.String()
}

func (m *interactiveModel) styleFor(k keypad.Key, row, col int, scientific bool) lipgloss.Style {
	switch {
	case row == m.row && col == m.col:
		return selectedStyle
	case k.Action == keypad.ActionOperator || k.Action == keypad.ActionEquals:
		return operatorStyle
	case scientific && row < len(keypad.Layout(true))-len(keypad.Layout(false)):
		return scientificStyle
	default:
		return cellStyle
	}
}

// renderDisplay shrinks the emphasis of long displays the way the size
// tiers of keypad.DisplaySize shrink the font.
func renderDisplay(st engine.State) string {
	style := displayStyle
	switch size := keypad.DisplaySize(st.Display); {
	case st.IsError():
		style = style.Foreground(lipgloss.Color("#FF6B6B"))
	case size >= 52:
		style = style.Bold(true)
	case size <= 36:
		style = style.Faint(true)
	}
	return style.Render(st.Display)
}

func runInteractive(ctx context.Context, e *engine.Engine, host *plugin.Host, dir string) error {
	var w *plugin.Watcher
	if dir != "" {
		var err error
		w, err = plugin.Watch(dir, plugin.DefaultDebounce)
		if err != nil {
			return fmt.Errorf("watch plugins: %w", err)
		}
		defer w.Close()
	}

	p := tea.NewProgram(newInteractiveModel(ctx, e, host, w, dir), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
