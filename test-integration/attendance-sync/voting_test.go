package integration

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/quorumdesk/quorumdesk/internal/apitest"
	"github.com/quorumdesk/quorumdesk/internal/voting"
	"github.com/quorumdesk/quorumdesk/test-integration/attendance-sync/helpers"
)

var _ = Describe("Ballot Submission", Label("voting"), func() {
	var (
		tempDir     string
		markersPath string
		fake        *apitest.Server
	)

	openSession := func() *helpers.SessionTestHelper {
		session, err := helpers.NewSessionTestHelper(ctx, helpers.NewTestConfig(fake.URL(), markersPath))
		Expect(err).NotTo(HaveOccurred())
		return session
	}

	buildBallot := func(session *helpers.SessionTestHelper) (*voting.Ballot, voting.Request) {
		svc := session.App().Components().Service
		questions, err := svc.ListQuestions(ctx, helpers.VotingID)
		Expect(err).NotTo(HaveOccurred())
		attendees, err := svc.ListAttendees(ctx, helpers.VotingID)
		Expect(err).NotTo(HaveOccurred())

		abstain := int64(12)
		file := &voting.BallotFile{
			Question:   4,
			AssignAll:  &abstain,
			Selections: map[int64]int64{1: 10, 2: 11},
		}
		ballot, err := file.Build(helpers.VotingID, questions, attendees)
		Expect(err).NotTo(HaveOccurred())
		return ballot, voting.Request{Ballot: ballot, Attendees: attendees}
	}

	BeforeEach(func() {
		tempDir = createTempDir("voting-test-")
		markersPath = filepath.Join(tempDir, "voted.json")
		fake = apitest.Start(
			apitest.WithRecords(helpers.CreateTestRecords()...),
			apitest.WithQuestions(helpers.VotingID, helpers.CreateTestQuestion()),
		)
	})

	AfterEach(func() {
		fake.Close()
		cleanupTempDir(tempDir)
	})

	It("should send one share-weighted vote per present attendee", func() {
		session := openSession()
		defer func() { Expect(session.Stop()).To(Succeed()) }()

		ballot, req := buildBallot(session)
		Expect(ballot.Len()).To(Equal(2), "only present attendees are on the ballot")

		result, err := session.App().Components().Submitter.Submit(ctx, req)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Requests).To(Equal(2))
		Expect(result.Marked).To(BeTrue())
		Expect(fake.Votes()).To(ConsistOf(
			voting.Vote{VotingID: helpers.VotingID, QuestionID: 4, OptionID: 10, Shares: 1000000},
			voting.Vote{VotingID: helpers.VotingID, QuestionID: 4, OptionID: 11, Shares: 250000},
		))

		tally := ballot.Tally(req.Attendees)
		Expect(tally).To(HaveLen(3))
		Expect(tally[0].Shares).To(Equal(int64(1000000)))
		Expect(tally[1].Shares).To(Equal(int64(250000)))
		Expect(tally[2].Count).To(BeZero())
	})

	It("should remember voted questions across sessions", func() {
		first := openSession()
		_, req := buildBallot(first)
		_, err := first.App().Components().Submitter.Submit(ctx, req)
		Expect(err).NotTo(HaveOccurred())
		Expect(first.Stop()).To(Succeed())

		second := openSession()
		defer func() { Expect(second.Stop()).To(Succeed()) }()

		_, req = buildBallot(second)
		_, err = second.App().Components().Submitter.Submit(ctx, req)
		Expect(err).To(MatchError(voting.ErrAlreadyVoted))
		Expect(fake.Votes()).To(HaveLen(2))

		req.Force = true
		_, err = second.App().Components().Submitter.Submit(ctx, req)
		Expect(err).NotTo(HaveOccurred())
		Expect(fake.Votes()).To(HaveLen(4))
	})

	It("should leave the question unmarked when a vote fails", func() {
		session := openSession()
		defer func() { Expect(session.Stop()).To(Succeed()) }()

		fake.FailVotesFor(11)
		_, req := buildBallot(session)
		result, err := session.App().Components().Submitter.Submit(ctx, req)
		Expect(err).To(HaveOccurred())
		Expect(voting.IsBatchError(err)).To(BeTrue())
		Expect(result.Failed).To(Equal(1))
		Expect(result.Marked).To(BeFalse())

		fake.ClearFailures()
		result, err = session.App().Components().Submitter.Submit(ctx, req)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Marked).To(BeTrue())
	})
})
