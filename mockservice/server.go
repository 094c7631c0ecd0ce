// Package mockservice is an in-process stand-in for the WireMock-style
// virtualization service: it serves registered stub mappings and implements
// the subset of the /__admin HTTP API that mockctl drives (upsert mapping,
// clear mappings, request journal, call-count query).
//
// Package tests use it so the mock controller can be exercised hermetically;
// local runs can start it on a port when no real mock service is deployed.
package mockservice

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/apiharness/service-contract-tests/framework"
	"github.com/apiharness/service-contract-tests/mockctl"
)

const adminPathPrefix = "/__admin/"
const listenerStartTimeout = 10 * time.Second

// JournalEntry records one inbound (non-admin) call in arrival order, along
// with the id of the stub mapping that answered it, if any.
type JournalEntry struct {
	Method    string    `json:"method"`
	Path      string    `json:"path"`
	MappingID string    `json:"mappingId,omitempty"`
	Time      time.Time `json:"time"`

	headers http.Header
	body    string
}

// Server holds the stub table and request journal. It implements
// http.Handler, so tests can mount it on an httptest server directly.
type Server struct {
	logger framework.Logger

	lock    sync.Mutex
	stubs   []mockctl.WireStub
	journal []JournalEntry
}

// New creates an empty mock service. A nil logger discards debug output.
func New(logger framework.Logger) *Server {
	if logger == nil {
		logger = framework.NullLogger()
	}
	return &Server{logger: framework.Prefixed(logger, "mockservice")}
}

// Start runs the service on the given port and blocks until its listener is
// confirmed reachable, or fails after a timeout.
func (s *Server) Start(port int) error {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s,
	}
	serveFailed := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveFailed <- err
		}
	}()

	deadline := time.NewTimer(listenerStartTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case err := <-serveFailed:
			return fmt.Errorf("could not start listener at %s: %w", server.Addr, err)
		case <-deadline.C:
			return fmt.Errorf("could not detect own listener at %s", server.Addr)
		case <-ticker.C:
			resp, err := http.DefaultClient.Head(fmt.Sprintf("http://localhost:%d%smappings", port, adminPathPrefix))
			if err == nil {
				_ = resp.Body.Close()
				return nil
			}
		}
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	if strings.HasPrefix(req.URL.Path, adminPathPrefix) {
		s.serveAdmin(w, req)
		return
	}
	s.serveStub(w, req)
}

func (s *Server) serveAdmin(w http.ResponseWriter, req *http.Request) {
	path := strings.TrimPrefix(req.URL.Path, adminPathPrefix)
	switch {
	case path == "mappings" && req.Method == http.MethodGet:
		s.lock.Lock()
		stubs := append([]mockctl.WireStub(nil), s.stubs...)
		s.lock.Unlock()
		writeJSON(w, map[string]interface{}{"mappings": stubs})

	case path == "mappings" && req.Method == http.MethodDelete:
		s.lock.Lock()
		s.stubs = nil
		s.lock.Unlock()
		w.WriteHeader(http.StatusOK)

	case strings.HasPrefix(path, "mappings/") && req.Method == http.MethodPut:
		id := strings.TrimPrefix(path, "mappings/")
		var stub mockctl.WireStub
		if err := json.NewDecoder(req.Body).Decode(&stub); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		stub.ID = id
		s.upsert(stub)
		w.WriteHeader(http.StatusOK)

	case path == "requests" && req.Method == http.MethodGet:
		s.lock.Lock()
		journal := append([]JournalEntry(nil), s.journal...)
		s.lock.Unlock()
		writeJSON(w, map[string]interface{}{"requests": journal})

	case path == "requests" && req.Method == http.MethodDelete:
		s.lock.Lock()
		s.journal = nil
		s.lock.Unlock()
		w.WriteHeader(http.StatusOK)

	case path == "requests/count" && req.Method == http.MethodPost:
		var criteria mockctl.WireRequest
		if err := json.NewDecoder(req.Body).Decode(&criteria); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		count := 0
		s.lock.Lock()
		for _, entry := range s.journal {
			if matches(criteria, entry.Method, entry.Path, entry.headers, entry.body) {
				count++
			}
		}
		s.lock.Unlock()
		writeJSON(w, mockctl.WireCountResponse{Count: count})

	default:
		s.logger.Printf("unrecognized admin request %s %s", req.Method, req.URL.Path)
		http.Error(w, "unrecognized admin request", http.StatusNotFound)
	}
}

// upsert replaces the stub with the same id or appends a new one. The newest
// distinct stub wins when several match the same request.
func (s *Server) upsert(stub mockctl.WireStub) {
	s.lock.Lock()
	defer s.lock.Unlock()
	for i := range s.stubs {
		if s.stubs[i].ID == stub.ID {
			s.stubs[i] = stub
			return
		}
	}
	s.stubs = append(s.stubs, stub)
}

func (s *Server) serveStub(w http.ResponseWriter, req *http.Request) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
		_ = req.Body.Close()
	}

	s.lock.Lock()
	var matched *mockctl.WireStub
	for i := len(s.stubs) - 1; i >= 0; i-- {
		if matches(s.stubs[i].Request, req.Method, req.URL.Path, req.Header, string(body)) {
			stub := s.stubs[i]
			matched = &stub
			break
		}
	}
	entry := JournalEntry{
		Method:  req.Method,
		Path:    req.URL.Path,
		Time:    time.Now(),
		headers: req.Header.Clone(),
		body:    string(body),
	}
	if matched != nil {
		entry.MappingID = matched.ID
	}
	s.journal = append(s.journal, entry)
	s.lock.Unlock()

	if matched == nil {
		s.logger.Printf("no stub matched %s %s", req.Method, req.URL.Path)
		http.Error(w, "no stub matched the request", http.StatusNotFound)
		return
	}

	if matched.Response.FixedDelayMilliseconds > 0 {
		time.Sleep(time.Duration(matched.Response.FixedDelayMilliseconds) * time.Millisecond)
	}
	for name, value := range matched.Response.Headers {
		w.Header().Set(name, value)
	}
	status := matched.Response.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(matched.Response.Body))
}

func matches(criteria mockctl.WireRequest, method, path string, headers http.Header, body string) bool {
	if criteria.Method != "" && criteria.Method != "ANY" &&
		!strings.EqualFold(criteria.Method, method) {
		return false
	}
	if criteria.URLPath != "" && criteria.URLPath != path {
		return false
	}
	if criteria.URLPathPattern != "" {
		rx, err := regexp.Compile("^(?:" + criteria.URLPathPattern + ")$")
		if err != nil || !rx.MatchString(path) {
			return false
		}
	}
	for name, matcher := range criteria.Headers {
		if headers.Get(name) != matcher.EqualTo {
			return false
		}
	}
	for _, pattern := range criteria.BodyPatterns {
		if !strings.Contains(body, pattern.Contains) {
			return false
		}
	}
	return true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
