// internal/api/client_test.go
package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gazewatch/gazewatch/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	c := New("http://localhost:5000", "secret123")

	require.NotNil(t, c)
	assert.Equal(t, "http://localhost:5000", c.baseURL)
	assert.Equal(t, "secret123", c.apiKey)
	assert.NotNil(t, c.httpClient)
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	c := New("http://localhost:5000/", "secret")
	assert.Equal(t, "http://localhost:5000", c.baseURL)
}

func TestHealthcheck_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/healthcheck", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New(server.URL, "")
	assert.NoError(t, c.Healthcheck(context.Background()))
}

func TestHealthcheck_ServerDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := New(url, "")
	assert.Error(t, c.Healthcheck(context.Background()))
}

func TestHealthcheck_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New(server.URL, "")
	err := c.Healthcheck(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestUpload_Success(t *testing.T) {
	got := map[string]string{}
	var content []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, UploadPath, r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		if !assert.NoError(t, r.ParseMultipartForm(10<<20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for _, k := range []string{"secret", "filename", "sessionId", "subject", "duration", "insideFraction", "endReason"} {
			got[k] = r.FormValue(k)
		}

		file, _, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		content, _ = io.ReadAll(file)

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	testFile := filepath.Join(t.TempDir(), "alice_20260102_150405_0123abcd.json.gz")
	require.NoError(t, os.WriteFile(testFile, []byte("report"), 0644))

	c := New(server.URL, "mysecret")
	meta := core.UploadMetadata{
		SessionID:      "0123abcd-0000-0000-0000-000000000000",
		Subject:        "alice",
		Duration:       95.25,
		InsideFraction: 0.8125,
		EndReason:      "frames exhausted",
	}
	require.NoError(t, c.Upload(context.Background(), testFile, meta))

	assert.Equal(t, map[string]string{
		"secret":         "mysecret",
		"filename":       "alice_20260102_150405_0123abcd.json.gz",
		"sessionId":      "0123abcd-0000-0000-0000-000000000000",
		"subject":        "alice",
		"duration":       "95.250",
		"insideFraction": "0.8125",
		"endReason":      "frames exhausted",
	}, got)
	assert.Equal(t, "report", string(content))
}

func TestUpload_FileNotFound(t *testing.T) {
	c := New("http://localhost:5000", "secret")
	err := c.Upload(context.Background(), "/nonexistent/file.json.gz", core.UploadMetadata{})
	assert.Error(t, err)
}

func TestUpload_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	testFile := filepath.Join(t.TempDir(), "test.json.gz")
	require.NoError(t, os.WriteFile(testFile, []byte("content"), 0644))

	c := New(server.URL, "wrong-secret")
	err := c.Upload(context.Background(), testFile, core.UploadMetadata{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestUpload_CanceledContext(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "test.json")
	require.NoError(t, os.WriteFile(testFile, []byte("{}"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New("http://127.0.0.1:1", "")
	assert.Error(t, c.Upload(ctx, testFile, core.UploadMetadata{}))
}
