package integration

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	qdapp "github.com/quorumdesk/quorumdesk/internal/app"
	"github.com/quorumdesk/quorumdesk/internal/apitest"
	"github.com/quorumdesk/quorumdesk/internal/attendance"
	pkgsync "github.com/quorumdesk/quorumdesk/internal/sync"
	"github.com/quorumdesk/quorumdesk/test-integration/attendance-sync/helpers"
)

var _ = Describe("Attendance Sync", Label("sync"), func() {
	var (
		fake    *apitest.Server
		session *helpers.SessionTestHelper
		notices []pkgsync.Notice
		mu      sync.Mutex
	)

	noticesSeen := func() []pkgsync.Notice {
		mu.Lock()
		defer mu.Unlock()
		return append([]pkgsync.Notice(nil), notices...)
	}

	startSession := func(fakeOpts ...apitest.Option) {
		fake = apitest.Start(append([]apitest.Option{
			apitest.WithRecords(helpers.CreateTestRecords()...),
			apitest.WithQuorum(helpers.VotingID, 1500000),
		}, fakeOpts...)...)

		notifier := pkgsync.NotifierFunc(func(n pkgsync.Notice) {
			mu.Lock()
			notices = append(notices, n)
			mu.Unlock()
		})

		var err error
		session, err = helpers.NewSessionTestHelper(ctx, helpers.NewTestConfig(fake.URL(), ""), qdapp.WithNotifier(notifier))
		Expect(err).NotTo(HaveOccurred())
		session.Start()
		session.WaitForRecords(4, 5*time.Second)
		Eventually(fake.Subscribers, 5*time.Second, 20*time.Millisecond).Should(Equal(1))
	}

	BeforeEach(func() {
		mu.Lock()
		notices = nil
		mu.Unlock()
	})

	AfterEach(func() {
		if session != nil {
			Expect(session.Stop()).To(Succeed())
			session = nil
		}
		if fake != nil {
			fake.Close()
			fake = nil
		}
	})

	Context("Loading and live updates", func() {
		BeforeEach(func() {
			startSession()
		})

		It("should compute the summary and quorum of the loaded list", func() {
			view, err := session.Controller().View(attendance.Filter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Total).To(Equal(4))
			Expect(view.Summary.Counts[attendance.StatusInPerson]).To(Equal(1))
			Expect(view.Summary.Counts[attendance.StatusVirtual]).To(Equal(1))
			Expect(view.Summary.Counts[attendance.StatusAbsent]).To(Equal(2))
			Expect(view.Summary.TotalShares).To(Equal(int64(2000000)))
			Expect(view.Pending).To(BeZero())
		})

		It("should apply status changes pushed by the server", func() {
			fake.SetStatus(3, attendance.StatusVirtual)
			session.WaitForStatus(3, attendance.StatusVirtual, 5*time.Second)

			view, err := session.Controller().View(attendance.Filter{Status: attendance.StatusVirtual})
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Rows).To(HaveLen(2))
		})

		It("should let a pushed change override a pending edit", func() {
			Expect(session.Controller().Edit(4, attendance.StatusInPerson)).To(Succeed())

			fake.SetStatus(4, attendance.StatusVirtual)
			session.WaitForStatus(4, attendance.StatusVirtual, 5*time.Second)
			Expect(session.Controller().Store().PendingCount()).To(BeZero())
		})

		It("should keep ticking the clock", func() {
			Eventually(session.Ticks, 2*time.Second, 20*time.Millisecond).Should(BeNumerically(">=", 3))
		})
	})

	Context("Saving local edits", func() {
		BeforeEach(func() {
			startSession()
		})

		It("should autosave pending edits", func() {
			Expect(session.Controller().Edit(3, attendance.StatusInPerson)).To(Succeed())

			session.WaitForPending(0, 5*time.Second)
			rec, ok := fake.Record(3)
			Expect(ok).To(BeTrue())
			Expect(rec.Status).To(Equal(attendance.StatusInPerson))
		})

		It("should save immediately on request", func() {
			Expect(session.Controller().Edit(4, attendance.StatusVirtual)).To(Succeed())
			session.App().Components().Coordinator.RequestSave()

			Eventually(func() attendance.Status {
				rec, _ := fake.Record(4)
				return rec.Status
			}, 2*time.Second, 20*time.Millisecond).Should(Equal(attendance.StatusVirtual))
		})

		It("should mark every visible row and save them together", func() {
			n, _, err := session.Controller().MarkAll(ctx, attendance.StatusInPerson,
				attendance.Filter{Status: attendance.StatusAbsent})
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))
			Expect(session.Controller().Store().PendingCount()).To(BeZero())

			for _, id := range []int64{3, 4} {
				rec, _ := fake.Record(id)
				Expect(rec.Status).To(Equal(attendance.StatusInPerson))
			}
		})

		It("should keep edits pending when the server rejects them", func() {
			fake.FailUpdates(3, -1)
			Expect(session.Controller().Edit(3, attendance.StatusVirtual)).To(Succeed())
			Expect(session.Controller().Edit(4, attendance.StatusVirtual)).To(Succeed())

			_, err := session.Controller().Save(ctx)
			Expect(err).To(HaveOccurred())
			Expect(session.Controller().Store().PendingCount()).To(Equal(2))
			Expect(noticesSeen()).To(ContainElement(HaveField("Severity", pkgsync.SeverityError)))

			fake.ClearFailures()
			session.WaitForPending(0, 5*time.Second)
			rec, _ := fake.Record(3)
			Expect(rec.Status).To(Equal(attendance.StatusVirtual))
		})
	})

	Context("Socket.IO push frames", func() {
		BeforeEach(func() {
			fake = apitest.Start(
				apitest.WithRecords(helpers.CreateTestRecords()...),
				apitest.WithSocketIOFrames(),
			)
			cfg := helpers.NewTestConfig(fake.URL(), "")
			cfg.Push.SocketIO = true

			var err error
			session, err = helpers.NewSessionTestHelper(ctx, cfg)
			Expect(err).NotTo(HaveOccurred())
			session.Start()
			session.WaitForRecords(4, 5*time.Second)
			Eventually(fake.Subscribers, 5*time.Second, 20*time.Millisecond).Should(Equal(1))
		})

		It("should decode events sent as Socket.IO frames", func() {
			fake.SetStatus(1, attendance.StatusAbsent)
			session.WaitForStatus(1, attendance.StatusAbsent, 5*time.Second)
		})
	})

	Context("Voting scope", func() {
		BeforeEach(func() {
			fake = apitest.Start(
				apitest.WithRecords(helpers.CreateTestRecords()...),
				apitest.WithQuorum(helpers.VotingID, 1500000),
			)
			cfg := helpers.NewTestConfig(fake.URL(), "")
			cfg.Scope.VotingID = helpers.VotingID
			cfg.Quorum.Metric = "shares"

			var err error
			session, err = helpers.NewSessionTestHelper(ctx, cfg)
			Expect(err).NotTo(HaveOccurred())
			session.Start()
			session.WaitForRecords(4, 5*time.Second)
		})

		It("should evaluate quorum against the session minimum", func() {
			view, err := session.Controller().View(attendance.Filter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(view.Scope.VotingID).To(Equal(helpers.VotingID))
			Expect(view.Quorum.Required).To(Equal(int64(1500000)))
			Expect(view.Quorum.Present).To(Equal(int64(1250000)))
			Expect(view.Quorum.Met).To(BeFalse())

			fake.SetStatus(3, attendance.StatusInPerson)
			Eventually(func() bool {
				view, _ := session.Controller().View(attendance.Filter{})
				return view.Quorum.Met
			}, 5*time.Second, 20*time.Millisecond).Should(BeTrue())
		})
	})
})
