// Package selector supplies the scene selection of an archive session:
// either interactively with a bubbletea picker or from command-line flags.
package selector

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/backmassage/framevault/internal/display"
	"github.com/backmassage/framevault/internal/errors"
	"github.com/backmassage/framevault/internal/pipeline"
	"github.com/backmassage/framevault/internal/scene"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	cursorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	pickedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	groupStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

type keyMap struct {
	Up, Down, Pick, Mark, Enter, Drop, Clear, Quit key.Binding
}

var keys = keyMap{
	Up:    key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:  key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Pick:  key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "pick")),
	Mark:  key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "mark for group")),
	Enter: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "add group / confirm")),
	Drop:  key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "drop last group")),
	Clear: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear")),
	Quit:  key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Pick, k.Mark, k.Enter, k.Drop, k.Clear, k.Quit}
}

// Model is the picker state. Scenes picked on their own and scenes inside
// a group are kept disjoint as the user edits.
type Model struct {
	artwork   string
	scenes    []scene.Scene
	cursor    int
	picked    map[int]bool
	marked    []int // Pending group, in mark order.
	groups    []scene.Group
	message   string
	confirmed bool
	cancelled bool
	help      help.Model
}

// NewModel starts from req.Previous when a selection was saved earlier.
func NewModel(req pipeline.SelectionRequest) Model {
	m := Model{artwork: req.Artwork, scenes: req.Scenes, picked: map[int]bool{}, help: help.New()}
	if p := req.Previous; p != nil && p.Validate(req.Scenes) == nil {
		for _, n := range p.Individual {
			m.picked[n] = true
		}
		m.groups = append(m.groups, p.Groups...)
		m.message = "restored the previous selection"
	}
	return m
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	m.message = ""
	n := m.cursor + 1

	switch {
	case key.Matches(k, keys.Quit):
		m.cancelled = true
		return m, tea.Quit
	case key.Matches(k, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(k, keys.Down):
		if m.cursor < len(m.scenes)-1 {
			m.cursor++
		}
	case key.Matches(k, keys.Pick):
		switch {
		case m.inGroup(n) > 0:
			m.message = fmt.Sprintf("scene %d is in group %d", n, m.inGroup(n))
		case slices.Contains(m.marked, n):
			m.message = fmt.Sprintf("scene %d is marked for a group", n)
		default:
			m.picked[n] = !m.picked[n]
		}
	case key.Matches(k, keys.Mark):
		switch {
		case m.picked[n]:
			m.message = fmt.Sprintf("scene %d is already picked on its own", n)
		case m.inGroup(n) > 0:
			m.message = fmt.Sprintf("scene %d is in group %d", n, m.inGroup(n))
		case slices.Contains(m.marked, n):
			m.marked = slices.DeleteFunc(m.marked, func(v int) bool { return v == n })
		default:
			m.marked = append(m.marked, n)
		}
	case key.Matches(k, keys.Drop):
		if len(m.groups) > 0 {
			m.groups = m.groups[:len(m.groups)-1]
		}
	case key.Matches(k, keys.Clear):
		m.picked = map[int]bool{}
		m.marked = nil
		m.groups = nil
	case key.Matches(k, keys.Enter):
		if len(m.marked) > 0 {
			g, err := scene.NewGroup(m.marked, m.scenes)
			if err != nil {
				m.message = err.Error()
				return m, nil
			}
			m.groups = append(m.groups, g)
			m.marked = nil
			return m, nil
		}
		sel := m.Selection()
		if sel.Empty() {
			m.message = "pick at least one scene or group"
			return m, nil
		}
		if err := sel.Validate(m.scenes); err != nil {
			m.message = err.Error()
			return m, nil
		}
		m.confirmed = true
		return m, tea.Quit
	}
	return m, nil
}

// inGroup returns the 1-based group holding scene n, or 0.
func (m Model) inGroup(n int) int {
	for i, g := range m.groups {
		if slices.Contains(g.Scenes, n) {
			return i + 1
		}
	}
	return 0
}

// Selection is the current picks, normalized.
func (m Model) Selection() scene.Selection {
	var sel scene.Selection
	for n, ok := range m.picked {
		if ok {
			sel.Individual = append(sel.Individual, n)
		}
	}
	sel.Groups = append(sel.Groups, m.groups...)
	return sel.Normalize()
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Select scenes for %s", m.artwork)))
	b.WriteString("\n\n")

	for i, sc := range m.scenes {
		n := i + 1
		box := "[ ]"
		switch {
		case m.picked[n]:
			box = pickedStyle.Render("[x]")
		case m.inGroup(n) > 0:
			box = groupStyle.Render(fmt.Sprintf("[%d]", m.inGroup(n)))
		case slices.Contains(m.marked, n):
			box = groupStyle.Render("[+]")
		}
		line := fmt.Sprintf("%s %02d  %s - %s  (%.1fs)",
			box, n, display.FormatClock(sc.StartTime), display.FormatClock(sc.EndTime), sc.Duration)
		if sc.ThumbnailPath == "" {
			line += helpStyle.Render("  no preview")
		}
		if i == m.cursor {
			b.WriteString(cursorStyle.Render("> ") + line)
		} else {
			b.WriteString("  " + line)
		}
		b.WriteByte('\n')
	}

	b.WriteByte('\n')
	for i, g := range m.groups {
		fmt.Fprintf(&b, "%s %s (%.1fs)\n", groupStyle.Render(fmt.Sprintf("Group %d:", i+1)), g, g.Duration(m.scenes))
	}
	if len(m.marked) > 0 {
		fmt.Fprintf(&b, "Marking: %s\n", scene.Group{Scenes: m.marked})
	}
	if m.message != "" {
		b.WriteString(errorStyle.Render(m.message) + "\n")
	}
	b.WriteString(m.help.ShortHelpView(keys.ShortHelp()) + "\n")
	return b.String()
}

// Picker is an interactive pipeline.Selector.
type Picker struct {
	In  io.Reader // Defaults to stdin.
	Out io.Writer // Defaults to stdout.
}

// Select runs the picker until the user confirms or quits. Quitting and
// context cancellation both return errors.ErrCancelled.
func (p Picker) Select(ctx context.Context, req pipeline.SelectionRequest) (scene.Selection, error) {
	if len(req.Scenes) == 0 {
		return scene.Selection{}, errors.NewValidationError("scenes", "nothing to select from")
	}
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if p.In != nil {
		opts = append(opts, tea.WithInput(p.In))
	}
	if p.Out != nil {
		opts = append(opts, tea.WithOutput(p.Out))
	}

	final, err := tea.NewProgram(NewModel(req), opts...).Run()
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, tea.ErrProgramKilled) {
			return scene.Selection{}, errors.ErrCancelled
		}
		return scene.Selection{}, fmt.Errorf("scene picker: %w", err)
	}
	m, ok := final.(Model)
	if !ok || m.cancelled || !m.confirmed {
		return scene.Selection{}, errors.ErrCancelled
	}
	return m.Selection(), nil
}
