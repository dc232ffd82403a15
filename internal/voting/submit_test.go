package voting_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/quorumdesk/quorumdesk/internal/attendance"
	"github.com/quorumdesk/quorumdesk/internal/voting"
	"github.com/quorumdesk/quorumdesk/internal/voting/mocks"
)

const testVotingID = "7"

func testQuestion() voting.Question {
	return voting.Question{
		ID:   3,
		Text: "Aprobación de estados financieros",
		Options: []voting.Option{
			{ID: 10, Text: "A favor"},
			{ID: 11, Text: "En contra"},
			{ID: 12, Text: "Abstención"},
		},
	}
}

func testAttendees() []attendance.Record {
	return []attendance.Record{
		{ID: 1, Shareholder: "Ana", Shares: 100},
		{ID: 2, Shareholder: "Luis", Shares: 40},
		{ID: 3, Shareholder: "Carla", Shares: 60},
	}
}

func twoSelectionBallot(t *testing.T) *voting.Ballot {
	t.Helper()
	ballot := voting.NewBallot(testVotingID, testQuestion())
	require.NoError(t, ballot.Select(1, 10))
	require.NoError(t, ballot.Select(3, 11))
	return ballot
}

func TestSubmit_AllVotesAccepted(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	caster := mocks.NewMockCaster(ctrl)
	markers := mocks.NewMockMarkerStore(ctrl)

	markers.EXPECT().IsVoted(gomock.Any(), testVotingID, int64(3)).Return(false, nil)
	caster.EXPECT().CastVote(gomock.Any(), voting.Vote{VotingID: testVotingID, QuestionID: 3, OptionID: 10, Shares: 100}).Return(nil)
	caster.EXPECT().CastVote(gomock.Any(), voting.Vote{VotingID: testVotingID, QuestionID: 3, OptionID: 11, Shares: 60}).Return(nil)
	markers.EXPECT().MarkVoted(gomock.Any(), testVotingID, int64(3)).Return(nil)

	submitter := voting.NewSubmitter(caster, markers)
	result, err := submitter.Submit(context.Background(), voting.Request{
		Ballot:    twoSelectionBallot(t),
		Attendees: testAttendees(),
	})

	require.NoError(t, err)
	assert.Equal(t, voting.Result{Requests: 2, Failed: 0, Marked: true}, result)
}

func TestSubmit_OneVoteFails(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	caster := mocks.NewMockCaster(ctrl)
	markers := mocks.NewMockMarkerStore(ctrl)
	castErr := errors.New("HTTP 500")

	markers.EXPECT().IsVoted(gomock.Any(), testVotingID, int64(3)).Return(false, nil)
	caster.EXPECT().CastVote(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, v voting.Vote) error {
			if v.OptionID == 11 {
				return castErr
			}
			return nil
		}).Times(2)
	// MarkVoted must not be called

	submitter := voting.NewSubmitter(caster, markers, voting.WithConcurrencyLimit(1))
	result, err := submitter.Submit(context.Background(), voting.Request{
		Ballot:    twoSelectionBallot(t),
		Attendees: testAttendees(),
	})

	require.Error(t, err)
	assert.True(t, voting.IsBatchError(err))
	assert.ErrorIs(t, err, castErr)
	assert.Equal(t, 2, result.Requests)
	assert.Equal(t, 1, result.Failed)
	assert.False(t, result.Marked)

	var batchErr *voting.BatchError
	require.ErrorAs(t, err, &batchErr)
	require.Len(t, batchErr.Failures, 1)
	assert.Equal(t, int64(60), batchErr.Failures[0].Vote.Shares)
	assert.Contains(t, err.Error(), "1 of 2 votes failed")
}

func TestSubmit_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		ballot    func(t *testing.T) *voting.Ballot
		force     bool
		setup     func(markers *mocks.MockMarkerStore)
		wantErr   error
		wantCasts int
	}{
		{
			name: "empty ballot fails before any request",
			ballot: func(_ *testing.T) *voting.Ballot {
				return voting.NewBallot(testVotingID, testQuestion())
			},
			setup:   func(_ *mocks.MockMarkerStore) {},
			wantErr: voting.ErrEmptyBallot,
		},
		{
			name:   "already voted question is refused",
			ballot: twoSelectionBallot,
			setup: func(markers *mocks.MockMarkerStore) {
				markers.EXPECT().IsVoted(gomock.Any(), testVotingID, int64(3)).Return(true, nil)
			},
			wantErr: voting.ErrAlreadyVoted,
		},
		{
			name:   "force skips the voted check",
			ballot: twoSelectionBallot,
			force:  true,
			setup: func(markers *mocks.MockMarkerStore) {
				markers.EXPECT().MarkVoted(gomock.Any(), testVotingID, int64(3)).Return(nil)
			},
			wantCasts: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			caster := mocks.NewMockCaster(ctrl)
			markers := mocks.NewMockMarkerStore(ctrl)
			tt.setup(markers)

			var casts atomic.Int32
			caster.EXPECT().CastVote(gomock.Any(), gomock.Any()).DoAndReturn(
				func(context.Context, voting.Vote) error {
					casts.Add(1)
					return nil
				}).AnyTimes()

			_, err := voting.NewSubmitter(caster, markers).Submit(context.Background(), voting.Request{
				Ballot:    tt.ballot(t),
				Attendees: testAttendees(),
				Force:     tt.force,
			})

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, int32(tt.wantCasts), casts.Load())
		})
	}
}

func TestSubmit_MarkerReadError(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	caster := mocks.NewMockCaster(ctrl)
	markers := mocks.NewMockMarkerStore(ctrl)
	markers.EXPECT().IsVoted(gomock.Any(), testVotingID, int64(3)).Return(false, errors.New("locked"))

	_, err := voting.NewSubmitter(caster, markers).Submit(context.Background(), voting.Request{
		Ballot:    twoSelectionBallot(t),
		Attendees: testAttendees(),
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read voted marker")
}

func TestMarkerKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "votacion_7_p3", voting.MarkerKey("7", 3))
}
