package meeting

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/quorumdesk/quorumdesk/internal/attendance"
	"github.com/quorumdesk/quorumdesk/internal/httpclient"
	"github.com/quorumdesk/quorumdesk/internal/otel"
	"github.com/quorumdesk/quorumdesk/internal/voting"
)

// Client implements Service over the meeting service REST API
type Client struct {
	http    httpclient.Client
	baseURL *url.URL
	tracer  trace.Tracer
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithTracer sets the tracer used for request spans
func WithTracer(tracer trace.Tracer) ClientOption {
	return func(c *Client) {
		c.tracer = tracer
	}
}

// NewClient creates a client for the service at baseURL
func NewClient(baseURL string, client httpclient.Client, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", baseURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")

	c := &Client{
		http:    client,
		baseURL: u,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the service base URL
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// endpoint builds an absolute URL for the path segments, with the voting scope as query when set
func (c *Client) endpoint(votingID string, segments ...string) string {
	u := *c.baseURL
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	u.Path = c.baseURL.Path + "/" + strings.Join(segments, "/")
	u.RawPath = c.baseURL.EscapedPath() + "/" + strings.Join(escaped, "/")
	if votingID != "" {
		u.RawQuery = url.Values{"votacion_id": {votingID}}.Encode()
	}
	return u.String()
}

// ListAttendance implements Service
func (c *Client) ListAttendance(ctx context.Context, scope attendance.Scope) ([]attendance.Record, error) {
	ctx, span := otel.StartSpan(ctx, c.tracer, "meeting.ListAttendance",
		trace.WithAttributes(otel.AttrScope.String(scope.String())))
	defer span.End()

	records, err := c.getRecords(ctx, c.endpoint(scope.VotingID, "api", "asistencia"))
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to list attendance: %w", err)
	}
	span.SetAttributes(otel.AttrResultCount.Int(len(records)))
	return records, nil
}

// UpdateStatus implements Service
func (c *Client) UpdateStatus(ctx context.Context, id int64, status attendance.Status, scope attendance.Scope) error {
	ctx, span := otel.StartSpan(ctx, c.tracer, "meeting.UpdateStatus",
		trace.WithAttributes(
			otel.AttrRecordID.Int64(id),
			otel.AttrStatus.String(string(status)),
		))
	defer span.End()

	target := c.endpoint(scope.VotingID, "api", "asistencia", strconv.FormatInt(id, 10))
	if _, err := c.http.PostJSON(ctx, target, map[string]attendance.Status{"estado": status}); err != nil {
		otel.RecordError(span, err)
		return fmt.Errorf("failed to update attendance %d: %w", id, err)
	}
	return nil
}

// QuorumConfig implements Service
func (c *Client) QuorumConfig(ctx context.Context, votingID string) (QuorumConfig, error) {
	var cfg QuorumConfig
	data, err := c.http.Get(ctx, c.endpoint(votingID, "api", "asistencia", "resumen"))
	if err != nil {
		return cfg, fmt.Errorf("failed to get quorum configuration: %w", err)
	}
	if err := decode(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode quorum configuration: %w", err)
	}
	if cfg.Minimum < 0 {
		cfg.Minimum = 0
	}
	return cfg, nil
}

// ListAttendees implements Service
func (c *Client) ListAttendees(ctx context.Context, votingID string) ([]attendance.Record, error) {
	records, err := c.getRecords(ctx, c.endpoint("", "api", "votacion", votingID, "asistentes"))
	if err != nil {
		return nil, fmt.Errorf("failed to list attendees of voting %s: %w", votingID, err)
	}
	return records, nil
}

// ListQuestions implements Service
func (c *Client) ListQuestions(ctx context.Context, votingID string) ([]voting.Question, error) {
	data, err := c.http.Get(ctx, c.endpoint("", "api", "votacion", votingID, "preguntas"))
	if err != nil {
		return nil, fmt.Errorf("failed to list questions of voting %s: %w", votingID, err)
	}
	var questions []voting.Question
	if err := decode(data, &questions); err != nil {
		return nil, fmt.Errorf("failed to decode questions: %w", err)
	}
	return questions, nil
}

// CastVote implements Service
func (c *Client) CastVote(ctx context.Context, vote voting.Vote) error {
	if _, err := c.http.PostJSON(ctx, c.endpoint("", "api", "votar"), vote); err != nil {
		return fmt.Errorf("failed to cast vote for question %d: %w", vote.QuestionID, err)
	}
	return nil
}

// ImportAttendance implements Service
func (c *Client) ImportAttendance(ctx context.Context, filename string, content io.Reader) error {
	if filename == "" || content == nil {
		return ErrNoFile
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xls", ".xlsx":
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFile, filename)
	}

	data, err := c.http.PostMultipart(ctx, c.endpoint("", "upload"), "file", filepath.Base(filename), content)
	if err != nil {
		return fmt.Errorf("failed to import attendance: %w", err)
	}

	var result struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := decode(data, &result); err != nil {
		return fmt.Errorf("failed to decode import response: %w", err)
	}
	if !result.OK {
		return fmt.Errorf("%w: %s", ErrImportRejected, result.Error)
	}
	slog.Info("Attendance list imported", "file", filename)
	return nil
}

// Export implements Service
func (c *Client) Export(ctx context.Context, format ExportFormat, w io.Writer) (int64, error) {
	if _, err := ParseExportFormat(string(format)); err != nil {
		return 0, err
	}
	n, err := c.http.Download(ctx, c.endpoint("", "export", string(format)), w)
	if err != nil {
		return n, fmt.Errorf("failed to export %s report: %w", format, err)
	}
	return n, nil
}

// Login implements Service
func (c *Client) Login(ctx context.Context, username, password string) error {
	_, err := c.http.PostForm(ctx, c.endpoint("", "login"), url.Values{
		"username": {username},
		"password": {password},
	})
	if err != nil {
		return fmt.Errorf("failed to log in: %w", err)
	}
	// A rejected login renders the form again without opening a session
	if !c.hasSession() {
		return ErrInvalidCredentials
	}
	slog.Debug("Logged in", "user", username)
	return nil
}

// hasSession reports whether the jar holds a cookie for the service
func (c *Client) hasSession() bool {
	return len(c.http.Jar().Cookies(c.baseURL)) > 0
}

func (c *Client) getRecords(ctx context.Context, target string) ([]attendance.Record, error) {
	data, err := c.http.Get(ctx, target)
	if err != nil {
		return nil, err
	}
	var records []attendance.Record
	if err := decode(data, &records); err != nil {
		return nil, err
	}
	for i := range records {
		records[i].Status = attendance.NormalizeStatus(string(records[i].Status))
	}
	return records, nil
}

// decode unmarshals a JSON body. An HTML body means the request was redirected to the login page.
func decode(data []byte, v any) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "<") {
		return ErrSessionExpired
	}
	return json.Unmarshal(data, v)
}
