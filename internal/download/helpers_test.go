package download

import (
	"bytes"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/AlikanakelaKarwowski/emularr/utils"
)

func TestMain(m *testing.M) {
	utils.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

// testConfig satisfies ConfigSource with fixed values.
type testConfig struct {
	dir     string
	threads int
}

func (c *testConfig) DownloadDir() string { return c.dir }
func (c *testConfig) ChunkThreads() int   { return c.threads }
func (c *testConfig) UserAgent() string   { return "emularr-test" }

// recordedRequest captures what a test server saw.
type recordedRequest struct {
	Method string
	Range  string
}

// rangeServer serves a fixed payload with full range-request support via
// http.ServeContent, optionally throttled so tests can pause or cancel
// mid-transfer. hideRanges drops the range advertisement entirely;
// ignoreRanges keeps advertising ranges on HEAD but answers every GET
// with a plain 200 and the full body.
type rangeServer struct {
	*httptest.Server

	mu           sync.Mutex
	requests     []recordedRequest
	content      []byte
	readDelay    time.Duration
	hideRanges   bool
	ignoreRanges bool
}

func newRangeServer(content []byte, readDelay time.Duration) *rangeServer {
	s := &rangeServer{content: content, readDelay: readDelay}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *rangeServer) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, recordedRequest{Method: r.Method, Range: r.Header.Get("Range")})
	hide := s.hideRanges
	ignore := s.ignoreRanges
	s.mu.Unlock()

	if hide {
		// pretend to be a server without byte-range support
		w.Header().Set("Content-Length", strconv.Itoa(len(s.content)))
		if r.Method == http.MethodHead {
			return
		}
		w.Write(s.content)
		return
	}
	if ignore {
		// advertise ranges but never honor them
		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Content-Length", strconv.Itoa(len(s.content)))
		if r.Method == http.MethodHead {
			return
		}
		w.Write(s.content)
		return
	}
	reader := &slowReader{Reader: bytes.NewReader(s.content), delay: s.readDelay}
	http.ServeContent(w, r, "payload.bin", time.Time{}, reader)
}

func (s *rangeServer) setHideRanges(hide bool) {
	s.mu.Lock()
	s.hideRanges = hide
	s.mu.Unlock()
}

func (s *rangeServer) setIgnoreRanges(ignore bool) {
	s.mu.Lock()
	s.ignoreRanges = ignore
	s.mu.Unlock()
}

func (s *rangeServer) recorded() []recordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]recordedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

type slowReader struct {
	*bytes.Reader
	delay time.Duration
}

func (s *slowReader) Read(p []byte) (int, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.Reader.Read(p)
}

func randomPayload(n int) []byte {
	payload := make([]byte, n)
	rng := rand.New(rand.NewSource(42))
	rng.Read(payload)
	return payload
}
