package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytesHTTPRetriesServerErrors(t *testing.T) {
	var calls int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	data, err := Bytes(context.Background(), server.URL, WithRetryBudget(10*time.Second))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(data))
	assert.EqualValues(t, 3, atomic.LoadInt64(&calls))
}

func TestBytesHTTPDoesNotRetryClientErrors(t *testing.T) {
	var calls int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := Bytes(context.Background(), server.URL, WithRetryBudget(10*time.Second))
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt64(&calls))

	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, server.URL, fe.URI)
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
}

func TestBytesContextCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Bytes(ctx, server.URL)
	assert.Error(t, err)
}

func TestBytesFileScheme(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/default_data.json", []byte(`{"users":[]}`), 0600))

	data, err := Bytes(context.Background(), "file:///data/default_data.json", WithFS(fs))
	require.NoError(t, err)
	assert.JSONEq(t, `{"users":[]}`, string(data))

	// bare paths read as files too
	data, err = Bytes(context.Background(), "/data/default_data.json", WithFS(fs))
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	_, err = Bytes(context.Background(), "file:///data/absent.json", WithFS(fs))
	assert.Error(t, err)
}

func TestJSONAndYAML(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/doc.json", []byte(`{"name":"nova"}`), 0600))
	require.NoError(t, afero.WriteFile(fs, "/doc.yaml", []byte("name: nova\n"), 0600))

	var jdoc struct {
		Name string `json:"name" yaml:"name"`
	}
	require.NoError(t, JSON(context.Background(), "/doc.json", &jdoc, WithFS(fs)))
	assert.Equal(t, "nova", jdoc.Name)

	var ydoc struct {
		Name string `json:"name" yaml:"name"`
	}
	require.NoError(t, YAML(context.Background(), "/doc.yaml", &ydoc, WithFS(fs)))
	assert.Equal(t, "nova", ydoc.Name)

	err := JSON(context.Background(), "/doc.yaml", &jdoc, WithFS(fs))
	assert.Error(t, err, "yaml is not json")
}

func TestUnsupportedScheme(t *testing.T) {
	_, err := Bytes(context.Background(), "gopher://example.com/x")
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	assert.Equal(t,
		"http://lists.example.org/pipermail/dev/2013-July.txt.gz",
		Resolve("http://lists.example.org/pipermail/dev/", "2013-July.txt.gz"))
	assert.Equal(t,
		"http://lists.example.org/other.txt.gz",
		Resolve("http://lists.example.org/pipermail/", "/other.txt.gz"))
	assert.Equal(t,
		"https://elsewhere.org/a.txt.gz",
		Resolve("http://lists.example.org/pipermail/", "https://elsewhere.org/a.txt.gz"))
}
