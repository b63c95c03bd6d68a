package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"tabcopy/pkg/config"
	"tabcopy/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<!DOCTYPE html><html><head><title>SCB</title></head><body>
<table class="c-table"><caption>Table 4-18 AIRCR</caption>
<tr><th>Bits</th><th>Name</th><th>Function</th></tr>
<tr><td>[0]</td><td>VECTRESET</td><td>Reserved</td></tr>
</table></body></html>`

func testHTTPConfig() config.HTTPConfig {
	return config.HTTPConfig{
		UserAgent:    "tabcopy-test",
		Timeout:      5 * time.Second,
		RetryCount:   config.Ptr(1),
		RetryWait:    time.Millisecond,
		RetryMaxWait: 5 * time.Millisecond,
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		target string
		want   Kind
	}{
		{"-", KindStdin},
		{"https://developer.arm.com/documentation", KindURL},
		{"http://localhost:8080/page", KindURL},
		{"page.html", KindFile},
		{"/tmp/saved page.html", KindFile},
		{"file:///tmp/page.html", KindFile},
		{"https:relative", KindFile},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.target), tt.target)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scb.html")
	require.NoError(t, os.WriteFile(path, []byte(page), 0644))

	p, err := NewLoader(testHTTPConfig()).Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, KindFile, p.Kind)
	assert.Equal(t, "utf-8", p.Charset)
	assert.True(t, strings.HasPrefix(p.MIME, "text/html"), p.MIME)

	doc, err := p.Document()
	require.NoError(t, err)
	assert.Equal(t, 1, doc.CountTables())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := NewLoader(testHTTPConfig()).Load(context.Background(), filepath.Join(t.TempDir(), "nope.html"))
	require.Error(t, err)
	assert.True(t, errors.IsExitCode(err, errors.ExitCodeSource))
}

func TestLoad_Stdin(t *testing.T) {
	l := NewLoader(testHTTPConfig(), WithStdin(strings.NewReader(page)))

	p, err := l.Load(context.Background(), Stdin)
	require.NoError(t, err)
	assert.Equal(t, KindStdin, p.Kind)
	assert.Equal(t, page, string(p.Body))
}

func TestLoad_EmptyStdin(t *testing.T) {
	l := NewLoader(testHTTPConfig(), WithStdin(strings.NewReader("")))

	_, err := l.Load(context.Background(), Stdin)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input is empty")
}

func TestLoad_SizeLimit(t *testing.T) {
	l := NewLoader(testHTTPConfig(), WithStdin(strings.NewReader(page)), WithMaxSize(16))

	_, err := l.Load(context.Background(), Stdin)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds maximum size of 16 bytes")
}

func TestLoad_RejectsBinary(t *testing.T) {
	pdf := "%PDF-1.7\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n"
	l := NewLoader(testHTTPConfig(), WithStdin(strings.NewReader(pdf)))

	_, err := l.Load(context.Background(), Stdin)
	require.Error(t, err)
	assert.True(t, errors.IsExitCode(err, errors.ExitCodeValidation))
	assert.Contains(t, err.Error(), "application/pdf")
}

func TestLoad_URL(t *testing.T) {
	var gotUA atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.UserAgent())
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(page))
	}))
	defer srv.Close()

	p, err := NewLoader(testHTTPConfig()).Load(context.Background(), srv.URL+"/scb")
	require.NoError(t, err)
	assert.Equal(t, KindURL, p.Kind)
	assert.Equal(t, http.StatusOK, p.Status)
	assert.Equal(t, srv.URL+"/scb", p.FinalURL)
	assert.Equal(t, "tabcopy-test", gotUA.Load())
	assert.Equal(t, page, string(p.Body))
}

func TestLoad_URLDecodesDeclaredCharset(t *testing.T) {
	latin1 := "<html><body><table class=\"c-table\"><caption>Caf\xe9</caption><tr><td>\xb5s</td></tr></table></body></html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=ISO-8859-1")
		w.Write([]byte(latin1))
	}))
	defer srv.Close()

	p, err := NewLoader(testHTTPConfig()).Load(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "iso-8859-1", p.Charset)
	assert.Contains(t, string(p.Body), "Café")
	assert.Contains(t, string(p.Body), "µs")
}

func TestLoad_URLNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewLoader(testHTTPConfig()).Load(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
	assert.True(t, errors.IsExitCode(err, errors.ExitCodeFetch))
	assert.Contains(t, err.Error(), "404")
}

func TestLoad_URLRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(page))
	}))
	defer srv.Close()

	p, err := NewLoader(testHTTPConfig()).Load(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, http.StatusOK, p.Status)
}

func TestLoad_URLSizeLimitStopsReading(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(page))
		w.Write([]byte(strings.Repeat("<p>padding</p>", 4096)))
	}))
	defer srv.Close()

	_, err := NewLoader(testHTTPConfig(), WithMaxSize(1024)).Load(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.IsExitCode(err, errors.ExitCodeSource))
	assert.Contains(t, err.Error(), "exceeds maximum size of 1024 bytes")
	// an oversized body is not retried
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDecode(t *testing.T) {
	t.Run("valid utf-8 without header", func(t *testing.T) {
		out, cs, err := Decode([]byte("µs"), "")
		require.NoError(t, err)
		assert.Equal(t, "utf-8", cs)
		assert.Equal(t, "µs", string(out))
	})

	t.Run("header charset wins", func(t *testing.T) {
		out, cs, err := Decode([]byte("\xe9t\xe9"), "text/html; charset=windows-1252")
		require.NoError(t, err)
		assert.Equal(t, "windows-1252", cs)
		assert.Equal(t, "été", string(out))
	})

	t.Run("unknown charset", func(t *testing.T) {
		_, _, err := Decode([]byte("x"), "text/html; charset=klingon")
		assert.Error(t, err)
	})
}
