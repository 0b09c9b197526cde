// Package tui is a terminal step-sequencer for editing rhythms: a grid of
// sixteenth cells with a cursor, plus a raw notation line for text edits.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/bep/debounce"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tiffz/darbuka/internal/grid"
	"github.com/tiffz/darbuka/internal/notation"
	"github.com/tiffz/darbuka/internal/rhythmfile"
)

var (
	sand      = lipgloss.Color("#E8C07D")
	terracota = lipgloss.Color("#D96C47")
	dimGray   = lipgloss.Color("#666666")
	offWhite  = lipgloss.Color("#EEEEEE")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(sand).
			MarginBottom(1)

	cellStyle = lipgloss.NewStyle().
			Foreground(offWhite)

	// Ghost measures exist only as unrolled repeat copies; dim them so the
	// player can tell source material from mirrors.
	ghostStyle = lipgloss.NewStyle().
			Foreground(dimGray)

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#000000")).
			Background(terracota).
			Bold(true)

	barStyle = lipgloss.NewStyle().
			Foreground(dimGray)

	statusStyle = lipgloss.NewStyle().
			Foreground(sand).
			PaddingTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(dimGray).
			MarginTop(1)
)

// State is the editor's input mode.
type State int

const (
	StateGrid State = iota
	StateText
)

// reparsedMsg arrives after the debounced reparse of the notation line.
type reparsedMsg struct{}

// Model is the bubbletea model for the editor.
type Model struct {
	state State

	path string
	bpm  float64
	ts   notation.TimeSignature

	text   textinput.Model
	rhythm notation.Rhythm
	grid   grid.Grid
	cursor notation.Tick

	debounced func(func())
	reparseCh chan struct{}

	status string
	width  int
}

// New builds the editor from a rhythm file's contents. The path may point at
// a file that does not exist yet; saving creates it.
func New(path string, f *rhythmfile.File) Model {
	ti := textinput.New()
	ti.Prompt = "notation> "
	ti.SetValue(f.Notation)
	ti.CharLimit = 512

	bpm := f.BPM
	if bpm <= 0 {
		bpm = 110
	}

	m := Model{
		state:     StateGrid,
		path:      path,
		bpm:       bpm,
		ts:        f.TimeSignature(),
		text:      ti,
		debounced: debounce.New(300 * time.Millisecond),
		reparseCh: make(chan struct{}, 1),
	}
	m.applyNotation(f.Notation)
	return m
}

func (m Model) Init() tea.Cmd {
	return m.listenReparse()
}

// listenReparse turns debounced reparse requests into tea messages.
func (m Model) listenReparse() tea.Cmd {
	ch := m.reparseCh
	return func() tea.Msg {
		<-ch
		return reparsedMsg{}
	}
}

// applyNotation parses text and rebuilds the grid when it is valid; invalid
// text keeps the previous grid so typing never destroys the editor state.
func (m *Model) applyNotation(text string) {
	r := notation.ParseRhythm(text, m.ts)
	m.rhythm = r
	if r.Valid {
		m.grid = grid.FromRhythm(&r)
		if int(m.cursor) >= len(m.grid.Cells) && len(m.grid.Cells) > 0 {
			m.cursor = notation.Tick(len(m.grid.Cells) - 1)
		}
	}
}

// paint sets (or clears, for Rest) the sound at the cursor, writing through
// to every linked ghost position when the cursor sits in a source measure.
func (m *Model) paint(sound notation.Sound) {
	if !m.rhythm.Valid || len(m.grid.Cells) == 0 {
		return
	}
	spm := m.ts.SixteenthsPerMeasure()
	for _, t := range grid.LinkedPositions(m.cursor, m.rhythm.SourceMap, spm) {
		if sound == notation.Rest {
			m.grid.Clear(t)
		} else {
			m.grid.Set(t, sound, m.ts)
		}
	}
	// Serialize and reparse so repeat markers and the source map track any
	// divergence the edit introduced.
	text := grid.ToNotation(m.grid, m.rhythm.Repeats, m.ts)
	m.text.SetValue(text)
	cursor := m.cursor
	m.applyNotation(text)
	m.cursor = cursor
	m.status = ""
}

func (m *Model) save() {
	if !m.rhythm.Valid {
		m.status = errorStyle.Render("cannot save: " + m.rhythm.Err)
		return
	}
	f := &rhythmfile.File{
		Notation: m.text.Value(),
		Time:     rhythmfile.TimeValue{Numerator: m.ts.Numerator, Denominator: m.ts.Denominator},
		BPM:      m.bpm,
		Grouping: m.ts.BeatGrouping,
	}
	if err := rhythmfile.Save(m.path, f); err != nil {
		m.status = errorStyle.Render(err.Error())
		return
	}
	m.status = fmt.Sprintf("saved %s", m.path)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case reparsedMsg:
		m.applyNotation(m.text.Value())
		return m, m.listenReparse()

	case tea.KeyMsg:
		if m.state == StateText {
			return m.updateText(msg)
		}
		return m.updateGrid(msg)
	}
	return m, nil
}

func (m Model) updateGrid(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "left", "h":
		if m.cursor > 0 {
			m.cursor--
		}
	case "right", "l":
		if int(m.cursor) < len(m.grid.Cells)-1 {
			m.cursor++
		}
	case "home":
		m.cursor = 0
	case "end":
		if n := len(m.grid.Cells); n > 0 {
			m.cursor = notation.Tick(n - 1)
		}
	case "d":
		m.paint(notation.Dum)
	case "t":
		m.paint(notation.Tak)
	case "k":
		m.paint(notation.Ka)
	case "s":
		m.paint(notation.Slap)
	case "_", " ", "backspace":
		m.paint(notation.Rest)
	case "a":
		m.grid.AppendGhostMeasures(1, m.ts)
	case "e", "enter":
		m.state = StateText
		m.text.Focus()
		return m, textinput.Blink
	case "w":
		m.save()
	}
	return m, nil
}

func (m Model) updateText(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "enter":
		m.state = StateGrid
		m.text.Blur()
		m.applyNotation(m.text.Value())
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.text, cmd = m.text.Update(msg)
	// Reparse once typing pauses rather than on every keystroke.
	ch := m.reparseCh
	m.debounced(func() {
		select {
		case ch <- struct{}{}:
		default:
		}
	})
	return m, cmd
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("darbuka"))
	b.WriteString("\n")
	b.WriteString(m.viewGrid())
	b.WriteString("\n")
	b.WriteString(m.text.View())
	b.WriteString("\n")
	if !m.rhythm.Valid {
		b.WriteString(errorStyle.Render(m.rhythm.Err))
		b.WriteString("\n")
	}
	for _, w := range m.rhythm.Warnings {
		b.WriteString(statusStyle.Render(w))
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString(statusStyle.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render(m.helpLine()))
	return b.String()
}

func (m Model) helpLine() string {
	if m.state == StateText {
		return "enter/esc: back to grid  ctrl+c: quit"
	}
	return "h/l: move  d/t/k/s: stroke  space: rest  a: add measure  e: edit text  w: save  q: quit"
}

// viewGrid renders one row per measure: cursor cell highlighted, ghost
// measures dimmed, padding cells past the content boundary dimmed too.
func (m Model) viewGrid() string {
	spm := m.ts.SixteenthsPerMeasure()
	if spm <= 0 || len(m.grid.Cells) == 0 {
		return barStyle.Render("(empty)")
	}
	var b strings.Builder
	for start := 0; start < len(m.grid.Cells); start += spm {
		measure := notation.MeasureIndex(start / spm)
		ghost := m.rhythm.Valid && m.rhythm.IsGhost(measure)
		b.WriteString(barStyle.Render("|"))
		for off := 0; off < spm && start+off < len(m.grid.Cells); off++ {
			i := start + off
			b.WriteString(m.renderCell(notation.Tick(i), ghost))
		}
		b.WriteString(barStyle.Render("|"))
		if ghost {
			b.WriteString(ghostStyle.Render(fmt.Sprintf("  = %d", int(m.rhythm.SourceOf(measure))+1)))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderCell(t notation.Tick, ghost bool) string {
	cell := m.grid.Cells[t]
	var ch string
	switch {
	case cell.Onset && cell.Sound != notation.Rest:
		ch = string(cell.Sound.Token())
	case m.grid.SoundAt(t) != notation.Rest:
		ch = "-"
	default:
		ch = "·"
	}
	if t == m.cursor && m.state == StateGrid {
		return cursorStyle.Render(ch)
	}
	if ghost || t >= m.grid.ActualLength {
		return ghostStyle.Render(ch)
	}
	return cellStyle.Render(ch)
}

// Run starts the editor for a rhythm file, creating a default document when
// the file does not exist.
func Run(path string) error {
	f, err := rhythmfile.Load(path)
	if err != nil {
		f = &rhythmfile.File{
			Notation: "D-T-__T-D---T---",
			Time:     rhythmfile.TimeValue{Numerator: 4, Denominator: 4},
			BPM:      110,
		}
	}
	p := tea.NewProgram(New(path, f), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
