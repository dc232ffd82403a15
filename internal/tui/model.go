// Package tui implements the interactive attendance screen of the watch command.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/quorumdesk/quorumdesk/internal/attendance"
	pkgsync "github.com/quorumdesk/quorumdesk/internal/sync"
)

// Actions are the requests the screen hands to the sync loop
type Actions interface {
	RequestSave()
	RequestReload()
}

// ClockMsg repaints the wall clock
type ClockMsg time.Time

type changedMsg struct{}

type noticeMsg pkgsync.Notice

type markedMsg struct {
	status attendance.Status
	rows   int
	err    error
}

// filterCycle is the order the status filter steps through
var filterCycle = []attendance.Status{"", attendance.StatusInPerson, attendance.StatusVirtual, attendance.StatusAbsent}

// nextStatus is the order enter and space step a row through
var nextStatus = map[attendance.Status]attendance.Status{
	attendance.StatusInPerson: attendance.StatusVirtual,
	attendance.StatusVirtual:  attendance.StatusAbsent,
	attendance.StatusAbsent:   attendance.StatusInPerson,
}

// Model is the bubbletea model of the attendance screen
type Model struct {
	ctx        context.Context
	controller *pkgsync.Controller
	actions    Actions

	changes     <-chan struct{}
	unsubscribe func()
	notices     <-chan pkgsync.Notice

	filter    attendance.Filter
	searching bool
	cursor    int
	offset    int
	height    int

	view   pkgsync.View
	notice *pkgsync.Notice
	now    time.Time
}

// Option configures a Model
type Option func(*Model)

// WithNotices shows the notices delivered by queue in the status line
func WithNotices(queue *NoticeQueue) Option {
	return func(m *Model) {
		m.notices = queue.C()
	}
}

// New creates the screen for controller. The model subscribes to controller changes
// until Close is called.
func New(ctx context.Context, controller *pkgsync.Controller, actions Actions, opts ...Option) *Model {
	m := &Model{
		ctx:        ctx,
		controller: controller,
		actions:    actions,
		height:     20,
		now:        time.Now(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.changes, m.unsubscribe = controller.Subscribe()
	m.refresh()
	return m
}

// Close stops listening to the controller
func (m *Model) Close() {
	m.unsubscribe()
}

// Filter returns the active filter
func (m *Model) Filter() attendance.Filter {
	return m.filter
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForChange(), m.waitForNotice())
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = max(msg.Height-8, 3)
		m.clampCursor()
		return m, nil
	case changedMsg:
		m.refresh()
		return m, m.waitForChange()
	case noticeMsg:
		n := pkgsync.Notice(msg)
		m.notice = &n
		return m, m.waitForNotice()
	case markedMsg:
		// Flush failures arrive as notices from the controller
		if msg.err != nil && !pkgsync.IsFlushError(msg.err) {
			n := pkgsync.Notice{Severity: pkgsync.SeverityError, Op: "mark-all", Message: "No se pudo marcar", Err: msg.err}
			m.notice = &n
		}
		if msg.err == nil {
			n := pkgsync.Notice{
				Severity: pkgsync.SeverityInfo,
				Op:       "mark-all",
				Message:  fmt.Sprintf("%d filas marcadas %s", msg.rows, msg.status),
			}
			m.notice = &n
		}
		return m, nil
	case ClockMsg:
		m.now = time.Time(msg)
		return m, nil
	case tea.KeyMsg:
		if m.searching {
			return m, m.updateSearch(msg)
		}
		return m, m.updateKey(msg)
	}
	return m, nil
}

func (m *Model) updateKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q", "ctrl+c":
		return tea.Quit
	case "up", "k":
		m.cursor--
		m.clampCursor()
	case "down", "j":
		m.cursor++
		m.clampCursor()
	case "s":
		m.actions.RequestSave()
	case "r":
		m.actions.RequestReload()
	case "p":
		return m.markAll(attendance.StatusInPerson)
	case "a":
		return m.markAll(attendance.StatusAbsent)
	case "f":
		m.cycleFilter()
	case "/":
		m.searching = true
	case "enter", " ":
		m.cycleSelected()
	}
	return nil
}

func (m *Model) updateSearch(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEnter, tea.KeyEsc:
		m.searching = false
	case tea.KeyBackspace:
		if r := []rune(m.filter.Search); len(r) > 0 {
			m.filter.Search = string(r[:len(r)-1])
			m.refresh()
		}
	case tea.KeyCtrlC:
		return tea.Quit
	case tea.KeySpace:
		m.filter.Search += " "
		m.refresh()
	case tea.KeyRunes:
		m.filter.Search += string(msg.Runes)
		m.refresh()
	}
	return nil
}

func (m *Model) cycleFilter() {
	for i, s := range filterCycle {
		if s == m.filter.Status {
			m.filter.Status = filterCycle[(i+1)%len(filterCycle)]
			break
		}
	}
	m.cursor = 0
	m.refresh()
}

func (m *Model) cycleSelected() {
	if m.cursor >= len(m.view.Rows) {
		return
	}
	row := m.view.Rows[m.cursor]
	if err := m.controller.Edit(row.ID, nextStatus[row.Effective]); err != nil {
		n := pkgsync.Notice{Severity: pkgsync.SeverityError, Op: "edit", Message: "No se pudo editar la fila", Err: err}
		m.notice = &n
		return
	}
	m.refresh()
}

// markAll runs the bulk edit off the update loop
func (m *Model) markAll(status attendance.Status) tea.Cmd {
	ctx, controller, filter := m.ctx, m.controller, m.filter
	return func() tea.Msg {
		n, _, err := controller.MarkAll(ctx, status, filter)
		return markedMsg{status: status, rows: n, err: err}
	}
}

func (m *Model) refresh() {
	view, err := m.controller.View(m.filter)
	if err != nil {
		n := pkgsync.Notice{Severity: pkgsync.SeverityError, Op: "filter", Message: "Búsqueda inválida", Err: err}
		m.notice = &n
		return
	}
	m.view = view
	m.clampCursor()
}

func (m *Model) clampCursor() {
	m.cursor = min(m.cursor, len(m.view.Rows)-1)
	m.cursor = max(m.cursor, 0)
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+m.height {
		m.offset = m.cursor - m.height + 1
	}
}

func (m *Model) waitForChange() tea.Cmd {
	ch := m.changes
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changedMsg{}
	}
}

func (m *Model) waitForNotice() tea.Cmd {
	if m.notices == nil {
		return nil
	}
	ch := m.notices
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return noticeMsg(n)
	}
}

// View implements tea.Model
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Asistencia " + m.view.Scope.String()))
	b.WriteString("  ")
	b.WriteString(clockStyle.Render(m.now.Format("15:04:05")))
	b.WriteString("\n")

	b.WriteString(m.view.Summary.String())
	b.WriteString("\n")
	if m.view.Quorum.Met {
		b.WriteString(quorumMet.Render(m.view.Quorum.String()))
	} else {
		b.WriteString(quorumMissing.Render(m.view.Quorum.String()))
	}
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render(fmt.Sprintf("%-6s %-40s %12s  %-10s", "ID", "Nombre", "Acciones", "Estado")))
	b.WriteString("\n")
	end := min(m.offset+m.height, len(m.view.Rows))
	for i := m.offset; i < end; i++ {
		b.WriteString(m.renderRow(i))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("s guardar · p/a marcar visibles · f filtro · / buscar · enter cambiar · r recargar · q salir"))
	return b.String()
}

func (m *Model) renderRow(i int) string {
	row := m.view.Rows[i]
	name := []rune(row.DisplayName())
	if len(name) > 40 {
		name = append(name[:39], '…')
	}
	status := statusStyles[row.Effective].Render(fmt.Sprintf("%-10s", row.Effective))
	line := fmt.Sprintf("%-6d %-40s %12d  %s", row.ID, string(name), row.Shares, status)
	if row.Pending {
		line += pendingStyle.Render(" *")
	}
	if i == m.cursor {
		return selectedStyle.Render(line)
	}
	return line
}

func (m *Model) statusLine() string {
	parts := []string{fmt.Sprintf("%d/%d filas", len(m.view.Rows), m.view.Total)}
	if m.filter.Status != "" {
		parts = append(parts, "estado="+string(m.filter.Status))
	}
	if m.searching || m.filter.Search != "" {
		search := "buscar: " + m.filter.Search
		if m.searching {
			search += "▏"
		}
		parts = append(parts, search)
	}
	if m.view.Pending > 0 {
		parts = append(parts, pendingStyle.Render(fmt.Sprintf("%d sin guardar", m.view.Pending)))
	}
	if m.notice != nil {
		parts = append(parts, renderNotice(*m.notice))
	}
	return strings.Join(parts, " · ")
}

func renderNotice(n pkgsync.Notice) string {
	if n.Severity == pkgsync.SeverityError {
		text := n.Message
		if n.Err != nil {
			text += ": " + n.Err.Error()
		}
		return errorStyle.Render(text)
	}
	return infoStyle.Render(n.Message)
}
