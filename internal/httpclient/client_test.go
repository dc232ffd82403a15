package httpclient_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorumdesk/quorumdesk/internal/httpclient"
)

// newTestServer creates a new test server with keep-alives disabled.
// This prevents flaky tests when running in parallel, as closing a server
// with keep-alives enabled can affect other tests sharing the HTTP transport.
func newTestServer(handler http.Handler) *httptest.Server {
	server := httptest.NewServer(handler)
	server.Config.SetKeepAlivesEnabled(false)
	return server
}

func TestNewDefaultClient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		timeout time.Duration
	}{
		{
			name:    "create client with custom timeout",
			timeout: 5 * time.Second,
		},
		{
			name:    "create client with zero timeout uses default",
			timeout: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := httpclient.NewDefaultClient(tt.timeout)

			require.NotNil(t, client, "client should not be nil")
			assert.NotNil(t, client.Jar(), "client should carry a cookie jar")
		})
	}
}

func TestDefaultClient_Get_Headers(t *testing.T) {
	t.Parallel()

	var receivedHeaders http.Header
	var receivedMethod string

	mockServer := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedHeaders = r.Header.Clone()
		receivedMethod = r.Method
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`[{"id":1}]`))
	}))
	defer mockServer.Close()

	client := httpclient.NewDefaultClient(30 * time.Second)

	data, err := client.Get(context.Background(), mockServer.URL)

	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1}]`, string(data))
	assert.Equal(t, http.MethodGet, receivedMethod)
	assert.Equal(t, httpclient.UserAgent, receivedHeaders.Get("User-Agent"))
	assert.Equal(t, "application/json", receivedHeaders.Get("Accept"))
	_, err = uuid.Parse(receivedHeaders.Get(httpclient.RequestIDHeader))
	assert.NoError(t, err, "request id should be a uuid")
}

func TestDefaultClient_HTTPErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		statusCode    int
		responseBody  string
		errorContains []string
	}{
		{
			name:          "404 Not Found",
			statusCode:    http.StatusNotFound,
			responseBody:  "Not Found",
			errorContains: []string{"HTTP 404", "Not Found"},
		},
		{
			name:          "400 with JSON error body",
			statusCode:    http.StatusBadRequest,
			responseBody:  `{"error":"Formato no permitido"}`,
			errorContains: []string{"HTTP 400", "Formato no permitido"},
		},
		{
			name:          "500 Internal Server Error",
			statusCode:    http.StatusInternalServerError,
			errorContains: []string{"HTTP 500"},
		},
		{
			name:          "401 Unauthorized",
			statusCode:    http.StatusUnauthorized,
			responseBody:  "Unauthorized",
			errorContains: []string{"HTTP 401"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mockServer := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.responseBody))
			}))
			defer mockServer.Close()

			client := httpclient.NewDefaultClient(30 * time.Second)

			_, err := client.Get(context.Background(), mockServer.URL)

			require.Error(t, err)
			assert.Equal(t, tt.statusCode, httpclient.StatusCode(err))
			for _, contains := range tt.errorContains {
				assert.Contains(t, err.Error(), contains)
			}
		})
	}
}

func TestDefaultClient_NetworkErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		url           string
		errorContains string
	}{
		{
			name:          "invalid URL scheme",
			url:           "://invalid-url",
			errorContains: "failed to create request",
		},
		{
			name:          "unreachable host",
			url:           "http://invalid-host-does-not-exist.local:9999",
			errorContains: "failed to execute request",
		},
		{
			name:          "empty URL",
			url:           "",
			errorContains: "failed to execute request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := httpclient.NewDefaultClient(30 * time.Second)

			_, err := client.Get(context.Background(), tt.url)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)
		})
	}
}

func TestDefaultClient_ContextCancellation(t *testing.T) {
	t.Parallel()

	mockServer := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(2 * time.Second)
		w.WriteHeader(http.StatusOK)
	}))
	defer mockServer.Close()

	client := httpclient.NewDefaultClient(30 * time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := client.PostJSON(ctx, mockServer.URL, map[string]string{"estado": "VIRTUAL"})

	require.Error(t, err)
}

func TestDefaultClient_PostJSON(t *testing.T) {
	t.Parallel()

	var receivedBody map[string]any
	var receivedContentType string

	mockServer := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedContentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&receivedBody)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer mockServer.Close()

	client := httpclient.NewDefaultClient(0)

	data, err := client.PostJSON(context.Background(), mockServer.URL, map[string]any{"estado": "VIRTUAL"})

	require.NoError(t, err)
	assert.Empty(t, data, "204 responses have no body")
	assert.Equal(t, "application/json", receivedContentType)
	assert.Equal(t, "VIRTUAL", receivedBody["estado"])
}

func TestDefaultClient_PostJSON_EncodingError(t *testing.T) {
	t.Parallel()

	client := httpclient.NewDefaultClient(0)

	_, err := client.PostJSON(context.Background(), "http://example.com", map[string]any{"bad": make(chan int)})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to encode request body")
}

func TestDefaultClient_PostForm(t *testing.T) {
	t.Parallel()

	var receivedUser, receivedPassword string

	mockServer := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		receivedUser = r.PostForm.Get("username")
		receivedPassword = r.PostForm.Get("password")
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
		w.WriteHeader(http.StatusOK)
	}))
	defer mockServer.Close()

	client := httpclient.NewDefaultClient(0)

	_, err := client.PostForm(context.Background(), mockServer.URL+"/login", url.Values{
		"username": {"operador"},
		"password": {"s3cret"},
	})

	require.NoError(t, err)
	assert.Equal(t, "operador", receivedUser)
	assert.Equal(t, "s3cret", receivedPassword)

	serverURL, err := url.Parse(mockServer.URL)
	require.NoError(t, err)
	cookies := client.Jar().Cookies(serverURL)
	require.Len(t, cookies, 1)
	assert.Equal(t, "session", cookies[0].Name)
}

func TestDefaultClient_PostMultipart(t *testing.T) {
	t.Parallel()

	var receivedName string
	var receivedContent []byte

	mockServer := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		receivedName = header.Filename
		receivedContent, _ = io.ReadAll(file)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer mockServer.Close()

	client := httpclient.NewDefaultClient(0)

	data, err := client.PostMultipart(context.Background(), mockServer.URL, "file", "asistentes.xlsx",
		strings.NewReader("spreadsheet-bytes"))

	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(data))
	assert.Equal(t, "asistentes.xlsx", receivedName)
	assert.Equal(t, []byte("spreadsheet-bytes"), receivedContent)
}

func TestDefaultClient_Download(t *testing.T) {
	t.Parallel()

	t.Run("streams body into writer", func(t *testing.T) {
		t.Parallel()

		mockServer := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/csv")
			_, _ = w.Write([]byte("id,estado\n1,PRESENCIAL\n"))
		}))
		defer mockServer.Close()

		client := httpclient.NewDefaultClient(0)
		var buf bytes.Buffer

		n, err := client.Download(context.Background(), mockServer.URL, &buf)

		require.NoError(t, err)
		assert.Equal(t, int64(buf.Len()), n)
		assert.Equal(t, "id,estado\n1,PRESENCIAL\n", buf.String())
	})

	t.Run("reject response exceeding limit via Content-Length", func(t *testing.T) {
		t.Parallel()

		mockServer := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Length", fmt.Sprintf("%d", httpclient.MaxResponseSize+1))
			w.WriteHeader(http.StatusOK)
		}))
		defer mockServer.Close()

		client := httpclient.NewDefaultClient(0)

		_, err := client.Download(context.Background(), mockServer.URL, io.Discard)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "exceeds maximum allowed size")
	})

	t.Run("HTTP error is returned before writing", func(t *testing.T) {
		t.Parallel()

		mockServer := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("Formato no soportado"))
		}))
		defer mockServer.Close()

		client := httpclient.NewDefaultClient(0)
		var buf bytes.Buffer

		_, err := client.Download(context.Background(), mockServer.URL, &buf)

		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, httpclient.StatusCode(err))
		assert.Zero(t, buf.Len())
	})
}
