package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/quorumdesk/quorumdesk/internal/attendance"
	"github.com/quorumdesk/quorumdesk/internal/meeting/mocks"
	pkgsync "github.com/quorumdesk/quorumdesk/internal/sync"
)

type fakeActions struct {
	saves   int
	reloads int
}

func (f *fakeActions) RequestSave()   { f.saves++ }
func (f *fakeActions) RequestReload() { f.reloads++ }

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestModel(t *testing.T, svc *mocks.MockService, opts ...Option) (*Model, *pkgsync.Controller, *fakeActions) {
	t.Helper()
	svc.EXPECT().ListAttendance(gomock.Any(), attendance.Scope{}).Return([]attendance.Record{
		{ID: 1, Shareholder: "Ana Pérez", Shares: 10, Status: attendance.StatusAbsent},
		{ID: 2, LegalRepresentative: "Grupo Sur S.A.", Shares: 5, Status: attendance.StatusInPerson},
		{ID: 3, Proxy: "Marta Ruiz", Shares: 1, Status: attendance.StatusVirtual},
	}, nil)

	controller := pkgsync.NewController(svc, pkgsync.WithNotifier(nil))
	require.NoError(t, controller.Load(context.Background(), attendance.Scope{}))

	actions := &fakeActions{}
	m := New(context.Background(), controller, actions, opts...)
	t.Cleanup(m.Close)
	return m, controller, actions
}

func TestModel_View(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestModel(t, mocks.NewMockService(gomock.NewController(t)))
	m.Update(ClockMsg(time.Date(2026, 4, 2, 10, 15, 30, 0, time.UTC)))

	out := m.View()
	assert.Contains(t, out, "Asistencia global")
	assert.Contains(t, out, "10:15:30")
	assert.Contains(t, out, "1 presenciales / 1 virtuales / 1 ausentes")
	assert.Contains(t, out, "Grupo Sur S.A.")
	assert.Contains(t, out, "3/3 filas")
}

func TestModel_CycleSelectedRow(t *testing.T) {
	t.Parallel()

	m, controller, _ := newTestModel(t, mocks.NewMockService(gomock.NewController(t)))

	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	status, ok := controller.Store().EffectiveState(1)
	require.True(t, ok)
	assert.Equal(t, attendance.StatusInPerson, status)

	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	status, _ = controller.Store().EffectiveState(2)
	assert.Equal(t, attendance.StatusVirtual, status)

	assert.Contains(t, m.View(), "2 sin guardar")
}

func TestModel_CursorStaysInBounds(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestModel(t, mocks.NewMockService(gomock.NewController(t)))

	m.Update(tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 0, m.cursor)
	for range 5 {
		m.Update(tea.KeyMsg{Type: tea.KeyDown})
	}
	assert.Equal(t, 2, m.cursor)
}

func TestModel_FilterCycle(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestModel(t, mocks.NewMockService(gomock.NewController(t)))

	expected := []attendance.Status{
		attendance.StatusInPerson,
		attendance.StatusVirtual,
		attendance.StatusAbsent,
		"",
	}
	for _, want := range expected {
		m.Update(runes("f"))
		assert.Equal(t, want, m.Filter().Status)
	}

	m.Update(runes("f"))
	require.Len(t, m.view.Rows, 1)
	assert.Equal(t, int64(2), m.view.Rows[0].ID)
}

func TestModel_Search(t *testing.T) {
	t.Parallel()

	m, _, actions := newTestModel(t, mocks.NewMockService(gomock.NewController(t)))

	m.Update(runes("/"))
	for _, r := range "grupo" {
		m.Update(runes(string(r)))
	}
	// Keys are typed into the search while it is open
	m.Update(runes("s"))
	m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	assert.Zero(t, actions.saves)
	assert.Equal(t, "grupo", m.Filter().Search)
	require.Len(t, m.view.Rows, 1)

	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m.Update(runes("s"))
	assert.Equal(t, 1, actions.saves)
}

func TestModel_SaveAndReloadRequests(t *testing.T) {
	t.Parallel()

	m, _, actions := newTestModel(t, mocks.NewMockService(gomock.NewController(t)))

	m.Update(runes("s"))
	m.Update(runes("r"))
	assert.Equal(t, 1, actions.saves)
	assert.Equal(t, 1, actions.reloads)

	_, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestModel_MarkVisible(t *testing.T) {
	t.Parallel()

	svc := mocks.NewMockService(gomock.NewController(t))
	m, controller, _ := newTestModel(t, svc)

	m.Update(runes("f"))
	m.Update(runes("f"))
	svc.EXPECT().UpdateStatus(gomock.Any(), int64(3), attendance.StatusAbsent, attendance.Scope{}).Return(nil)

	_, cmd := m.Update(runes("a"))
	require.NotNil(t, cmd)
	m.Update(cmd())

	status, _ := controller.Store().EffectiveState(3)
	assert.Equal(t, attendance.StatusAbsent, status)
	assert.Contains(t, m.View(), "1 filas marcadas AUSENTE")
}

func TestModel_Notices(t *testing.T) {
	t.Parallel()

	queue := NewNoticeQueue(1, nil)
	m, _, _ := newTestModel(t, mocks.NewMockService(gomock.NewController(t)), WithNotices(queue))

	queue.Notify(pkgsync.Notice{
		Severity: pkgsync.SeverityError,
		Op:       "save",
		Message:  "No se pudieron guardar algunos cambios",
		Err:      errors.New("HTTP 500"),
	})
	// A full queue drops the newest notice
	queue.Notify(pkgsync.Notice{Severity: pkgsync.SeverityInfo, Message: "dropped"})

	msg := m.waitForNotice()()
	m.Update(msg)
	assert.Contains(t, m.View(), "No se pudieron guardar algunos cambios: HTTP 500")
}

func TestModel_ChangeNotification(t *testing.T) {
	t.Parallel()

	m, controller, _ := newTestModel(t, mocks.NewMockService(gomock.NewController(t)))

	controller.HandleRemote(context.Background(), 1, attendance.StatusVirtual)
	msg := m.waitForChange()()
	_, cmd := m.Update(msg)
	assert.NotNil(t, cmd)
	assert.Contains(t, m.View(), "1 presenciales / 2 virtuales / 0 ausentes")
}
