// Package apitest provides an in-memory meeting service speaking the same REST API and
// push channel as the real one. It backs the package tests, the integration suite and
// the devserver command.
package apitest

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/quorumdesk/quorumdesk/internal/attendance"
	"github.com/quorumdesk/quorumdesk/internal/voting"
)

const (
	// PushPath is where the push channel is served
	PushPath = "/ws"

	sessionCookie = "session"
)

// Upload is a file received on the import endpoint
type Upload struct {
	Filename string
	Size     int64
}

// Server is a fake meeting service
type Server struct {
	mu        sync.Mutex
	records   map[int64]attendance.Record
	quorum    map[string]int64
	questions map[string][]voting.Question
	users     map[string]string
	sessions  map[string]string

	votes    []voting.Vote
	updates  []attendance.Edit
	attempts []int64
	uploads  []Upload

	failUpdates map[int64]int
	failOptions map[int64]bool

	requireLogin bool
	socketIO     bool
	middlewares  []func(http.Handler) http.Handler

	hub *hub
	ts  *httptest.Server
}

// Option configures a Server
type Option func(*Server)

// WithRecords seeds the attendance list
func WithRecords(records ...attendance.Record) Option {
	return func(s *Server) {
		for _, r := range records {
			s.records[r.ID] = r
		}
	}
}

// WithQuorum sets the quorum minimum of a voting session
func WithQuorum(votingID string, minimum int64) Option {
	return func(s *Server) {
		s.quorum[votingID] = minimum
	}
}

// WithQuestions sets the questions of a voting session
func WithQuestions(votingID string, questions ...voting.Question) Option {
	return func(s *Server) {
		s.questions[votingID] = questions
	}
}

// WithUser adds an account and makes every API route require a session
func WithUser(username, password string) Option {
	return func(s *Server) {
		s.users[username] = password
		s.requireLogin = true
	}
}

// WithSocketIOFrames makes the push channel emit Socket.IO style text frames
func WithSocketIOFrames() Option {
	return func(s *Server) {
		s.socketIO = true
	}
}

// WithMiddlewares adds middleware to the router
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(s *Server) {
		s.middlewares = append(s.middlewares, mw...)
	}
}

// New creates a fake meeting service. Use Handler to serve it or Start for a test listener.
func New(opts ...Option) *Server {
	s := &Server{
		records:     make(map[int64]attendance.Record),
		quorum:      make(map[string]int64),
		questions:   make(map[string][]voting.Question),
		users:       make(map[string]string),
		sessions:    make(map[string]string),
		failUpdates: make(map[int64]int),
		failOptions: make(map[int64]bool),
		hub:         newHub(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start serves the fake on a local test listener
func Start(opts ...Option) *Server {
	s := New(opts...)
	s.ts = httptest.NewServer(s.Handler())
	s.ts.Config.SetKeepAlivesEnabled(false)
	return s
}

// URL returns the base URL of a started server
func (s *Server) URL() string {
	if s.ts == nil {
		return ""
	}
	return s.ts.URL
}

// Close disconnects push subscribers and stops a started server
func (s *Server) Close() {
	s.hub.closeAll()
	if s.ts != nil {
		s.ts.Close()
	}
}

// Handler returns the HTTP handler of the fake
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	for _, mw := range s.middlewares {
		r.Use(mw)
	}

	r.Get("/login", s.loginPage)
	r.Post("/login", s.login)
	r.Get("/panel", s.panel)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)

		r.Get("/api/asistencia", s.listAttendance)
		r.Get("/api/asistencia/resumen", s.summary)
		r.Post("/api/asistencia/{id}", s.updateAttendance)
		r.Get("/api/votacion/{votingID}/asistentes", s.listAttendees)
		r.Get("/api/votacion/{votingID}/preguntas", s.listQuestions)
		r.Post("/api/votar", s.castVote)
		r.Post("/upload", s.upload)
		r.Get("/export/{format}", s.export)
		r.Get(PushPath, s.push)
	})
	return r
}

// FailUpdates makes the next n updates of a record fail with a server error. A negative n fails forever.
func (s *Server) FailUpdates(id int64, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failUpdates[id] = n
}

// FailVotesFor makes every vote for an option fail with a server error
func (s *Server) FailVotesFor(optionID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOptions[optionID] = true
}

// ClearFailures removes every injected failure
func (s *Server) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.failUpdates)
	clear(s.failOptions)
}

// SetStatus changes a record as another operator would and notifies subscribers
func (s *Server) SetStatus(id int64, status attendance.Status) {
	s.mu.Lock()
	if r, ok := s.records[id]; ok {
		r.Status = status
		s.records[id] = r
	}
	s.mu.Unlock()
	s.hub.broadcast(encodeEvent(id, status, s.socketIO))
}

// Record returns a record as stored by the fake
func (s *Server) Record(id int64) (attendance.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	return r, ok
}

// Len returns the number of attendance records served
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Updates returns every accepted status update in arrival order
func (s *Server) Updates() []attendance.Edit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]attendance.Edit(nil), s.updates...)
}

// UpdateAttempts counts the update requests received for a record, failed ones included
func (s *Server) UpdateAttempts(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, u := range s.attempts {
		if u == id {
			n++
		}
	}
	return n
}

// Votes returns every accepted vote
func (s *Server) Votes() []voting.Vote {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]voting.Vote(nil), s.votes...)
}

// Uploads returns the received import files
func (s *Server) Uploads() []Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Upload(nil), s.uploads...)
}

// Subscribers returns the number of connected push clients
func (s *Server) Subscribers() int {
	return s.hub.size()
}

// sortedRecords returns the records ordered by id. Caller holds s.mu.
func (s *Server) sortedRecords() []attendance.Record {
	out := make([]attendance.Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Server) newSession(username string) string {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = username
	return id
}

func (s *Server) validSession(r *http.Request) bool {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[c.Value]
	return ok
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.requireLogin && !s.validSession(r) {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}
