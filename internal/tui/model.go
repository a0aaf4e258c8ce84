// Package tui is a terminal front-end for the canvas editor. Mouse input is
// translated to pointer events in screen pixels, one cell standing for a
// fixed block of pixels, and the editor view is drawn with box characters.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/starford/tessera/internal/editor"
	"github.com/starford/tessera/internal/geometry"
	"github.com/starford/tessera/internal/interaction"
	"github.com/starford/tessera/internal/models"
	"github.com/starford/tessera/internal/notify"
)

const (
	headerRows = 1
	footerRows = 2

	doubleClick = 400 * time.Millisecond
	refresh     = 100 * time.Millisecond
)

var connTypes = []models.ConnectionType{
	models.ConnectionSimple,
	models.ConnectionDirectional,
	models.ConnectionBidirectional,
}

// Clipboard is the system clipboard.
type Clipboard interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

type systemClipboard struct{}

func (systemClipboard) ReadAll() (string, error)   { return clipboard.ReadAll() }
func (systemClipboard) WriteAll(text string) error { return clipboard.WriteAll(text) }

type (
	tickMsg  struct{}
	toastMsg notify.Toast
)

// Option configures a Model.
type Option func(*Model)

// WithClipboard replaces the system clipboard.
func WithClipboard(c Clipboard) Option {
	return func(m *Model) { m.clip = c }
}

// WithNow sets the clock used for double-click detection.
func WithNow(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

// Model is the bubbletea model around one open editor.
type Model struct {
	ed     *editor.Editor
	center *notify.Center
	toasts <-chan notify.Toast
	stop   func()
	clip   Clipboard
	now    func() time.Time

	input     textinput.Model
	editingID string

	width, height int
	connType      int
	lastClick     time.Time
	lastCell      [2]int
	latest        *notify.Toast
	status        string
}

// New returns a model driving ed. Toasts are read from center.
func New(ed *editor.Editor, center *notify.Center, opts ...Option) *Model {
	ti := textinput.New()
	ti.Prompt = "title> "
	ti.CharLimit = 500

	ch, stop := center.Subscribe()
	m := &Model{
		ed:     ed,
		center: center,
		toasts: ch,
		stop:   stop,
		clip:   systemClipboard{},
		now:    time.Now,
		input:  ti,
		width:  80,
		height: 24,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func waitToast(ch <-chan notify.Toast) tea.Cmd {
	return func() tea.Msg {
		t, ok := <-ch
		if !ok {
			return nil
		}
		return toastMsg(t)
	}
}

func tick() tea.Cmd {
	return tea.Tick(refresh, func(time.Time) tea.Msg { return tickMsg{} })
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(waitToast(m.toasts), tick())
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ed.SetSurface(geometry.Point{Y: headerRows * cellH}, float64(m.width)*cellW, float64(m.rows())*cellH)
	case tickMsg:
		cmd = tick()
	case toastMsg:
		t := notify.Toast(msg)
		m.latest = &t
		m.status = ""
		cmd = waitToast(m.toasts)
	case tea.MouseMsg:
		m.mouse(msg)
	case tea.KeyMsg:
		var quit bool
		cmd, quit = m.key(msg)
		if quit {
			m.stop()
			return m, tea.Quit
		}
	}
	return m, tea.Batch(cmd, m.syncEditing())
}

func (m *Model) rows() int {
	return max(1, m.height-headerRows-footerRows)
}

// syncEditing opens or closes the title input to follow the editor.
func (m *Model) syncEditing() tea.Cmd {
	v := m.ed.Snapshot()
	switch {
	case v.EditingCardID != "" && m.editingID == "":
		m.editingID = v.EditingCardID
		title := ""
		for _, c := range v.Cards {
			if c.ID == v.EditingCardID {
				title = c.Title
			}
		}
		m.input.SetValue(title)
		m.input.CursorEnd()
		return m.input.Focus()
	case v.EditingCardID == "" && m.editingID != "":
		m.editingID = ""
		m.input.Blur()
	case v.EditingCardID != "":
		m.editingID = v.EditingCardID
	}
	return nil
}

func (m *Model) mouse(msg tea.MouseMsg) {
	p := geometry.Point{X: float64(msg.X) * cellW, Y: float64(msg.Y) * cellH}
	ev := interaction.PointerEvent{X: p.X, Y: p.Y, Shift: msg.Shift}

	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		m.ed.Wheel(-1)
	case msg.Button == tea.MouseButtonWheelDown:
		m.ed.Wheel(1)
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		if msg.Y < headerRows || msg.Y >= headerRows+m.rows() {
			return
		}
		now, at := m.now(), [2]int{msg.X, msg.Y}
		if at == m.lastCell && now.Sub(m.lastClick) < doubleClick {
			m.lastClick = time.Time{}
			m.ed.DoubleClick(p.X, p.Y)
			return
		}
		m.lastClick, m.lastCell = now, at

		v := m.ed.Snapshot()
		ev.Target = hitTest(v, p)
		if ev.Target.Kind == interaction.TargetEmpty && v.Mode == interaction.ModeIdle {
			if id := connectionAt(v, p, m.width, m.rows()); id != "" {
				_ = m.ed.SelectConnection(id)
				return
			}
		}
		m.ed.PointerDown(ev)
	case msg.Action == tea.MouseActionMotion:
		m.ed.PointerMove(ev)
	case msg.Action == tea.MouseActionRelease:
		m.ed.PointerUp(ev)
	}
}

func (m *Model) key(msg tea.KeyMsg) (tea.Cmd, bool) {
	k := msg.String()
	if k == "ctrl+c" {
		return nil, true
	}
	v := m.ed.Snapshot()

	if m.editingID != "" {
		switch k {
		case "enter":
			m.ed.CommitTitle(strings.TrimSpace(m.input.Value()))
		case "esc":
			m.ed.HandleKey(editor.Key{Name: editor.KeyEscape})
		default:
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return cmd, false
		}
		return nil, false
	}

	if v.ConfirmDelete != nil {
		switch k {
		case "y", "enter":
			m.ed.ConfirmDelete()
		case "n", "esc":
			m.ed.CancelDelete()
		}
		return nil, false
	}

	switch k {
	case "q":
		return nil, true
	case "ctrl+a", "ctrl+g":
		m.ed.HandleKey(editor.Key{Name: strings.TrimPrefix(k, "ctrl+"), Ctrl: true})
	case "delete":
		m.ed.HandleKey(editor.Key{Name: editor.KeyDelete})
	case "backspace":
		m.ed.HandleKey(editor.Key{Name: editor.KeyBackspace})
	case "esc":
		m.ed.HandleKey(editor.Key{Name: editor.KeyEscape})
	case "c":
		m.ed.ToggleConnect()
	case "t":
		m.connType = (m.connType + 1) % len(connTypes)
		m.ed.SetConnectionType(connTypes[m.connType])
	case "n":
		c := m.middle()
		m.ed.DoubleClick(c.X, c.Y)
	case "e", "enter":
		if c := selectedCard(v); c != nil {
			p := screenOf(v, c.Rect().Center())
			m.ed.DoubleClick(p.X, p.Y)
		}
	case "+", "=":
		m.ed.Wheel(-1)
	case "-":
		m.ed.Wheel(1)
	case "y":
		m.copy(v)
	case "p":
		m.paste(v)
	case "u":
		m.trigger(notify.ActionUndo)
	case "r":
		m.trigger(notify.ActionRetry)
	}
	return nil, false
}

// middle is the screen point in the middle of the drawing surface.
func (m *Model) middle() geometry.Point {
	return geometry.Point{
		X: float64(m.width) * cellW / 2,
		Y: headerRows*cellH + float64(m.rows())*cellH/2,
	}
}

func selectedCard(v editor.View) *editor.CardView {
	if len(v.Selection) == 0 {
		return nil
	}
	for i := range v.Cards {
		if v.Cards[i].ID == v.Selection[0] {
			return &v.Cards[i]
		}
	}
	return nil
}

func (m *Model) copy(v editor.View) {
	c := selectedCard(v)
	if c == nil {
		return
	}
	text := c.Title
	if c.Content != "" {
		text += "\n\n" + c.Content
	}
	if err := m.clip.WriteAll(text); err != nil {
		m.status = "clipboard: " + err.Error()
		return
	}
	m.status = fmt.Sprintf("Copied %q", c.Title)
}

// paste creates a note from the clipboard: first line as title, the rest as
// content.
func (m *Model) paste(v editor.View) {
	text, err := m.clip.ReadAll()
	if err != nil {
		m.status = "clipboard: " + err.Error()
		return
	}
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if text == "" {
		return
	}
	title, content, _ := strings.Cut(text, "\n")
	p := geometry.ToCanvas(m.middle(), v.Origin, geometry.Point{X: v.Viewport.X, Y: v.Viewport.Y}, v.Viewport.Zoom)
	m.ed.AddCard(models.NewCard{
		Type:    models.CardNote,
		Title:   strings.TrimSpace(title),
		Content: strings.TrimSpace(content),
		X:       p.X,
		Y:       p.Y,
		Width:   models.DefaultCardWidth,
		Height:  models.DefaultCardHeight,
	})
}

// trigger runs label on the newest toast offering it.
func (m *Model) trigger(label string) {
	toasts := m.center.Toasts()
	for i := len(toasts) - 1; i >= 0; i-- {
		for _, l := range toasts[i].Labels() {
			if l == label {
				_ = m.center.Trigger(toasts[i].ID, label)
				return
			}
		}
	}
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f9fafb")).Background(lipgloss.Color("#374151"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#22c55e"))
	confirmStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#f59e0b")).Bold(true)
)

// View implements tea.Model.
func (m *Model) View() string {
	v := m.ed.Snapshot()

	snap := "off"
	if v.GridSnap {
		snap = fmt.Sprintf("%g", v.GridSize)
	}
	header := fmt.Sprintf(" %s │ %s │ zoom %.0f%% │ grid %s │ link %s │ %d selected",
		v.Name, v.Mode, v.Viewport.Zoom*100, snap, connTypes[m.connType], len(v.Selection))
	header = headerStyle.Width(m.width).Render(header)

	body := draw(v, m.width, m.rows()).lines(styles)

	var footer string
	switch {
	case m.editingID != "":
		footer = m.input.View()
	case v.ConfirmDelete != nil:
		footer = confirmStyle.Render(m.confirmText(v) + " [y/n]")
	case m.status != "":
		footer = m.status
	case m.latest != nil:
		footer = toastLine(*m.latest)
	}
	help := helpStyle.Render("dbl-click/n new · e edit · c connect · t link type · del delete · ^a all · ^g grid · +/- zoom · y/p copy/paste · u undo · r retry · q quit")

	return lipgloss.JoinVertical(lipgloss.Left, header, strings.Join(body, "\n"), footer, help)
}

func (m *Model) confirmText(v editor.View) string {
	t := v.ConfirmDelete
	if t.Kind == editor.EntityConnection {
		return "Delete this connection?"
	}
	for _, c := range v.Cards {
		if c.ID == t.ID {
			return fmt.Sprintf("Delete card %q and its connections?", c.Title)
		}
	}
	return "Delete card?"
}

func toastLine(t notify.Toast) string {
	s := t.Message
	for _, l := range t.Labels() {
		s += fmt.Sprintf("  [%s]%s", strings.ToLower(l[:1]), l[1:])
	}
	switch t.Kind {
	case notify.KindError:
		return errorStyle.Render(s)
	case notify.KindSuccess:
		return successStyle.Render(s)
	}
	return s
}
