package devserver

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/agentic-research/fingerpack/internal/vfs"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *vfs.Memory, *httptest.Server) {
	t.Helper()
	fs := vfs.NewMemory()
	require.NoError(t, fs.Write("/out/index.html", []byte("<html><body>home</body></html>")))
	require.NoError(t, fs.Write("/out/about.html", []byte("<p>about</p>")))
	require.NoError(t, fs.Write("/out/blog/index.html", []byte("<body>blog</body>")))
	require.NoError(t, fs.Write("/out/css/site.1a2b3c4d.css", []byte("body{}")))

	s, err := New(fs, "/out", 16)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, fs, ts
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestServe_HTMLFallbacks(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, body := get(t, ts.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(body, "<html><body>home<script>"), body)
	assert.True(t, strings.HasSuffix(body, "</script></body></html>"), body)

	_, body = get(t, ts.URL+"/about")
	assert.True(t, strings.HasPrefix(body, "<p>about</p><script>"), body)
	assert.Contains(t, body, ReloadPath)

	_, body = get(t, ts.URL+"/blog")
	assert.Contains(t, body, "blog")
}

func TestServe_StaticAsset(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, body := get(t, ts.URL+"/css/site.1a2b3c4d.css")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/css")
	assert.Equal(t, "body{}", body)

	resp, _ = get(t, ts.URL+"/missing.js")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServe_CacheUntilReload(t *testing.T) {
	s, fs, ts := newTestServer(t)

	_, body := get(t, ts.URL+"/css/site.1a2b3c4d.css")
	require.Equal(t, "body{}", body)

	require.NoError(t, fs.Write("/out/css/site.1a2b3c4d.css", []byte("body{color:red}")))
	_, body = get(t, ts.URL+"/css/site.1a2b3c4d.css")
	assert.Equal(t, "body{}", body)

	s.Reload()
	_, body = get(t, ts.URL+"/css/site.1a2b3c4d.css")
	assert.Equal(t, "body{color:red}", body)
}

func TestLiveReload(t *testing.T) {
	s, _, ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + ReloadPath
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	require.Eventually(t, func() bool { return s.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	s.Reload()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	kind, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, kind)
	assert.Equal(t, "reload", string(msg))

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return s.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestInjectReload(t *testing.T) {
	assert.Equal(t, "<p>x</p>"+reloadScript, string(injectReload([]byte("<p>x</p>"))))
	assert.Equal(t, "<BODY>x"+reloadScript+"</BODY>", string(injectReload([]byte("<BODY>x</BODY>"))))
}

func TestCandidates(t *testing.T) {
	assert.Equal(t, []string{"/index.html"}, candidates("/"))
	assert.Equal(t, []string{"/about/index.html", "/about.html", "/about"}, candidates("/about"))
	assert.Equal(t, []string{"/css/site.css"}, candidates("/css/site.css"))
	assert.Equal(t, []string{"/etc/passwd.txt"}, candidates("/../etc/passwd.txt"))
}
