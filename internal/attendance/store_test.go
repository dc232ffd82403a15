package attendance_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorumdesk/quorumdesk/internal/attendance"
)

func newLoadedStore(t *testing.T) *attendance.Store {
	t.Helper()
	store := attendance.NewStore()
	store.Replace(attendance.Scope{}, []attendance.Record{
		{ID: 1, Shareholder: "Ana Pérez", Shares: 10, Status: attendance.StatusAbsent},
		{ID: 2, LegalRepresentative: "Luis Gómez", Shares: 5, Status: attendance.StatusInPerson},
		{ID: 3, Proxy: "Carla Ruiz", Shares: 7, Status: attendance.StatusVirtual},
	})
	return store
}

func TestStore_EffectiveState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		edits    []attendance.Edit
		id       int64
		expected attendance.Status
		found    bool
	}{
		{
			name:     "replica status without pending edit",
			id:       1,
			expected: attendance.StatusAbsent,
			found:    true,
		},
		{
			name:     "pending edit overrides replica",
			edits:    []attendance.Edit{{ID: 1, Status: attendance.StatusVirtual}},
			id:       1,
			expected: attendance.StatusVirtual,
			found:    true,
		},
		{
			name: "last local edit wins",
			edits: []attendance.Edit{
				{ID: 2, Status: attendance.StatusAbsent},
				{ID: 2, Status: attendance.StatusVirtual},
			},
			id:       2,
			expected: attendance.StatusVirtual,
			found:    true,
		},
		{
			name:  "unknown id",
			id:    42,
			found: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := newLoadedStore(t)
			for _, e := range tt.edits {
				require.NoError(t, store.ApplyLocalEdit(e.ID, e.Status))
			}

			status, ok := store.EffectiveState(tt.id)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.expected, status)
		})
	}
}

func TestStore_ApplyLocalEdit_Errors(t *testing.T) {
	t.Parallel()

	store := newLoadedStore(t)

	err := store.ApplyLocalEdit(99, attendance.StatusVirtual)
	require.ErrorIs(t, err, attendance.ErrUnknownRecord)

	err = store.ApplyLocalEdit(1, attendance.Status("TARDE"))
	require.ErrorIs(t, err, attendance.ErrInvalidStatus)

	assert.Zero(t, store.PendingCount())
}

func TestStore_ApplyRemoteUpdate_ClearsPending(t *testing.T) {
	t.Parallel()

	t.Run("remote update replaces pending edit", func(t *testing.T) {
		t.Parallel()

		store := newLoadedStore(t)
		require.NoError(t, store.ApplyLocalEdit(1, attendance.StatusVirtual))

		found := store.ApplyRemoteUpdate(1, attendance.StatusInPerson)

		assert.True(t, found)
		status, _ := store.EffectiveState(1)
		assert.Equal(t, attendance.StatusInPerson, status)
		assert.Zero(t, store.PendingCount())
	})

	t.Run("remote update equal to pending edit still clears it", func(t *testing.T) {
		t.Parallel()

		store := newLoadedStore(t)
		require.NoError(t, store.ApplyLocalEdit(1, attendance.StatusVirtual))

		store.ApplyRemoteUpdate(1, attendance.StatusVirtual)

		assert.Empty(t, store.PendingEdits())
	})

	t.Run("unknown record is reported and not inserted", func(t *testing.T) {
		t.Parallel()

		store := newLoadedStore(t)

		found := store.ApplyRemoteUpdate(77, attendance.StatusVirtual)

		assert.False(t, found)
		assert.Equal(t, 3, store.Len())
	})

	t.Run("local edit after remote update is pending again", func(t *testing.T) {
		t.Parallel()

		store := newLoadedStore(t)
		store.ApplyRemoteUpdate(3, attendance.StatusAbsent)
		require.NoError(t, store.ApplyLocalEdit(3, attendance.StatusInPerson))

		status, _ := store.EffectiveState(3)
		assert.Equal(t, attendance.StatusInPerson, status)
		assert.Equal(t, 1, store.PendingCount())
	})
}

func TestStore_ApplyLocalEdits(t *testing.T) {
	t.Parallel()

	store := newLoadedStore(t)
	applied, skipped, err := store.ApplyLocalEdits([]int64{1, 9, 3}, attendance.StatusInPerson)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)
	assert.Equal(t, []int64{9}, skipped, "ids that left the replica are skipped")
	assert.Equal(t, []attendance.Edit{
		{ID: 1, Status: attendance.StatusInPerson},
		{ID: 3, Status: attendance.StatusInPerson},
	}, store.PendingEdits())

	_, _, err = store.ApplyLocalEdits([]int64{2}, "TODOS")
	require.ErrorIs(t, err, attendance.ErrInvalidStatus)
	assert.Equal(t, 2, store.PendingCount())
}

func TestStore_ConfirmEdits(t *testing.T) {
	t.Parallel()

	store := newLoadedStore(t)
	require.NoError(t, store.ApplyLocalEdit(1, attendance.StatusVirtual))
	require.NoError(t, store.ApplyLocalEdit(2, attendance.StatusAbsent))

	pushed := store.PendingEdits()
	require.Equal(t, []attendance.Edit{
		{ID: 1, Status: attendance.StatusVirtual},
		{ID: 2, Status: attendance.StatusAbsent},
	}, pushed)

	// id 2 changes again while the push is in flight
	require.NoError(t, store.ApplyLocalEdit(2, attendance.StatusVirtual))

	store.ConfirmEdits(pushed)

	assert.Equal(t, []attendance.Edit{{ID: 2, Status: attendance.StatusVirtual}}, store.PendingEdits())

	record, ok := store.Record(1)
	require.True(t, ok)
	assert.Equal(t, attendance.StatusVirtual, record.Status, "confirmed edits reach the replica")
}

func TestStore_ConfirmEdits_KeepsNewerRemoteUpdate(t *testing.T) {
	t.Parallel()

	store := newLoadedStore(t)
	require.NoError(t, store.ApplyLocalEdit(3, attendance.StatusInPerson))
	inFlight := store.PendingEdits()

	// the server reports another change for id 3 before the push returns
	store.ApplyRemoteUpdate(3, attendance.StatusAbsent)
	store.ConfirmEdits(inFlight)

	status, ok := store.EffectiveState(3)
	require.True(t, ok)
	assert.Equal(t, attendance.StatusAbsent, status)
	record, _ := store.Record(3)
	assert.Equal(t, attendance.StatusAbsent, record.Status)
	assert.Zero(t, store.PendingCount())
}

func TestStore_Replace_KeepsPendingEdits(t *testing.T) {
	t.Parallel()

	store := newLoadedStore(t)
	require.NoError(t, store.ApplyLocalEdit(1, attendance.StatusVirtual))

	store.Replace(attendance.Scope{VotingID: "7"}, []attendance.Record{
		{ID: 1, Shares: -3, Status: attendance.StatusAbsent},
	})

	status, ok := store.EffectiveState(1)
	require.True(t, ok)
	assert.Equal(t, attendance.StatusVirtual, status)
	assert.Equal(t, attendance.Scope{VotingID: "7"}, store.Scope())

	record, ok := store.Record(1)
	require.True(t, ok)
	assert.Zero(t, record.Shares, "negative share counts are clamped")

	assert.Equal(t, 1, store.DiscardPending())
	assert.Zero(t, store.PendingCount())
}

func TestStore_Rows(t *testing.T) {
	t.Parallel()

	store := newLoadedStore(t)
	require.NoError(t, store.ApplyLocalEdit(3, attendance.StatusAbsent))

	rows := store.Rows()

	require.Len(t, rows, 3)
	for _, row := range rows {
		effective, _ := store.EffectiveState(row.ID)
		assert.Equal(t, effective, row.Effective)
	}
	assert.True(t, rows[2].Pending)
	assert.Equal(t, attendance.StatusVirtual, rows[2].Status, "replica status is untouched")
	assert.False(t, rows[0].Pending)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	store := newLoadedStore(t)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			_ = store.ApplyLocalEdit(1, attendance.StatusVirtual)
		}()
		go func() {
			defer wg.Done()
			store.ApplyRemoteUpdate(1, attendance.StatusInPerson)
		}()
		go func() {
			defer wg.Done()
			_ = attendance.Aggregate(store.Rows())
		}()
	}
	wg.Wait()

	status, ok := store.EffectiveState(1)
	require.True(t, ok)
	assert.Contains(t, []attendance.Status{attendance.StatusVirtual, attendance.StatusInPerson}, status)
}
