// Package devserver serves the output directory during development and
// tells connected browsers to reload when a change has settled.
package devserver

import (
	"bytes"
	"context"
	"errors"
	"mime"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/agentic-research/fingerpack/internal/vfs"
	"github.com/gorilla/websocket"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
)

// ReloadPath is the websocket endpoint injected pages connect to.
const ReloadPath = "/__fingerpack/livereload"

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = (pongWait * 9) / 10
)

const reloadScript = `<script>(function(){var s=location.protocol==="https:"?"wss://":"ws://";` +
	`var ws=new WebSocket(s+location.host+"` + ReloadPath + `");` +
	`ws.onmessage=function(e){if(e.data==="reload")location.reload();};})();</script>`

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type client struct {
	send chan string
}

// Server serves files below root from fs. File contents are cached until
// the next Reload.
type Server struct {
	fs    vfs.FileSystem
	root  string
	cache *lru.Cache[string, []byte]

	mu      sync.Mutex
	clients map[*client]struct{}
}

// New creates a server for the output tree at root holding at most
// cacheSize files in memory.
func New(fs vfs.FileSystem, root string, cacheSize int) (*Server, error) {
	if cacheSize <= 0 {
		cacheSize = 512
	}
	cache, err := lru.New[string, []byte](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Server{
		fs:      fs,
		root:    filepath.Clean(root),
		cache:   cache,
		clients: make(map[*client]struct{}),
	}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(ReloadPath, s.handleReload)
	mux.HandleFunc("/", s.handleFile)
	return mux
}

// Reload drops cached files and tells every connected browser to reload.
func (s *Server) Reload() {
	s.cache.Purge()

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- "reload":
		default: // a reload is already pending for this client
		}
	}
	log.Debug().Int("clients", len(s.clients)).Msg("reload")
}

// Clients returns the number of connected browsers.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Str("root", s.root).Msg("serving")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// candidates lists the files a request path may be served from. Paths
// without an extension are tried as a directory index and as a page
// before the bare name.
func candidates(urlPath string) []string {
	p := path.Clean("/" + urlPath)
	if p == "/" {
		return []string{"/index.html"}
	}
	if path.Ext(p) != "" {
		return []string{p}
	}
	return []string{p + "/index.html", p + ".html", p}
}

func (s *Server) load(rel string) ([]byte, bool) {
	if data, ok := s.cache.Get(rel); ok {
		return data, true
	}
	data, err := s.fs.ReadBinary(filepath.Join(s.root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, false
	}
	s.cache.Add(rel, data)
	return data, true
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	for _, rel := range candidates(r.URL.Path) {
		data, ok := s.load(rel)
		if !ok {
			continue
		}
		ctype := mime.TypeByExtension(path.Ext(rel))
		if ctype == "" {
			ctype = http.DetectContentType(data)
		}
		if strings.HasPrefix(ctype, "text/html") {
			data = injectReload(data)
		}
		w.Header().Set("Content-Type", ctype)
		w.Header().Set("Cache-Control", "no-cache")
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write(data)
		return
	}
	http.NotFound(w, r)
}

// injectReload places the reload script before </body>, or at the end
// when there is none.
func injectReload(page []byte) []byte {
	out := make([]byte, 0, len(page)+len(reloadScript))
	if i := bytes.LastIndex(bytes.ToLower(page), []byte("</body>")); i >= 0 {
		out = append(out, page[:i]...)
		out = append(out, reloadScript...)
		return append(out, page[i:]...)
	}
	out = append(out, page...)
	return append(out, reloadScript...)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	c := &client{send: make(chan string, 1)}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
	}()

	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Browsers never send anything; reading only detects the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case msg := <-c.send:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
