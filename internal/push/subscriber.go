// Package push subscribes to the status change channel of the meeting service.
package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
)

const (
	// DefaultPath is the push endpoint path relative to the service base URL
	DefaultPath = "/ws"

	// DefaultMaxBackoff caps the delay between reconnection attempts
	DefaultMaxBackoff = 30 * time.Second

	defaultInitialBackoff = 500 * time.Millisecond
	defaultBufferSize     = 64
	handshakeTimeout      = 10 * time.Second
)

// Subscriber keeps a websocket connection to the push channel open and delivers the
// decoded events on a channel
type Subscriber struct {
	url            string
	jar            http.CookieJar
	header         http.Header
	socketIO       bool
	initialBackoff time.Duration
	maxBackoff     time.Duration

	events    chan Event
	connected atomic.Bool
}

// Option configures a Subscriber
type Option func(*Subscriber)

// WithCookieJar sends the session cookies of the jar on every handshake
func WithCookieJar(jar http.CookieJar) Option {
	return func(s *Subscriber) {
		s.jar = jar
	}
}

// WithHeader adds handshake headers
func WithHeader(header http.Header) Option {
	return func(s *Subscriber) {
		s.header = header
	}
}

// WithSocketIO joins the default Socket.IO namespace after connecting and answers pings
func WithSocketIO() Option {
	return func(s *Subscriber) {
		s.socketIO = true
	}
}

// WithBackoff sets the initial and maximum reconnection delay
func WithBackoff(initial, maxDelay time.Duration) Option {
	return func(s *Subscriber) {
		if initial > 0 {
			s.initialBackoff = initial
		}
		if maxDelay > 0 {
			s.maxBackoff = maxDelay
		}
	}
}

// WithBufferSize sets the capacity of the events channel
func WithBufferSize(n int) Option {
	return func(s *Subscriber) {
		if n >= 0 {
			s.events = make(chan Event, n)
		}
	}
}

// NewSubscriber creates a subscriber for the push channel at path under baseURL
func NewSubscriber(baseURL, path string, opts ...Option) (*Subscriber, error) {
	target, err := pushURL(baseURL, path)
	if err != nil {
		return nil, err
	}
	s := &Subscriber{
		url:            target,
		initialBackoff: defaultInitialBackoff,
		maxBackoff:     DefaultMaxBackoff,
		events:         make(chan Event, defaultBufferSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// pushURL turns the http(s) base URL into the ws(s) URL of the push endpoint
func pushURL(baseURL, path string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid base URL %q: unsupported scheme", baseURL)
	}
	if path == "" {
		path = DefaultPath
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("invalid push path %q: %w", path, err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(ref.Path, "/")
	u.RawQuery = ref.RawQuery
	return u.String(), nil
}

// URL returns the websocket URL of the push channel
func (s *Subscriber) URL() string {
	return s.url
}

// Events returns the channel of decoded events. It is closed when Run returns.
func (s *Subscriber) Events() <-chan Event {
	return s.events
}

// Connected reports whether a connection is currently open
func (s *Subscriber) Connected() bool {
	return s.connected.Load()
}

// Run connects and reconnects until ctx is done. Connection failures are retried with
// exponential backoff and never returned.
func (s *Subscriber) Run(ctx context.Context) error {
	defer close(s.events)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.initialBackoff
	b.MaxInterval = s.maxBackoff

	for {
		err := s.session(ctx, b)
		if ctx.Err() != nil {
			return nil
		}
		delay := b.NextBackOff()
		slog.Warn("Push channel disconnected", "url", s.url, "error", err, "retry_in", delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// session runs one connection until it fails or ctx is done
func (s *Subscriber) session(ctx context.Context, b *backoff.ExponentialBackOff) error {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
		Jar:              s.jar,
	}
	conn, resp, err := dialer.DialContext(ctx, s.url, s.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()

	if s.socketIO {
		if err := conn.WriteMessage(websocket.TextMessage, []byte("40")); err != nil {
			return fmt.Errorf("failed to join namespace: %w", err)
		}
	}

	s.connected.Store(true)
	defer s.connected.Store(false)
	b.Reset()
	slog.Info("Push channel connected", "url", s.url)

	// Unblock the read loop on shutdown
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if s.socketIO && string(frame) == "2" {
			if err := conn.WriteMessage(websocket.TextMessage, []byte("3")); err != nil {
				return err
			}
			continue
		}

		event, err := Decode(frame)
		if err != nil {
			if errors.Is(err, ErrIgnored) {
				slog.Debug("Skipping push frame", "reason", err)
			} else {
				slog.Warn("Skipping malformed push frame", "error", err)
			}
			continue
		}

		select {
		case s.events <- event:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
