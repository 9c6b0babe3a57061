package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aezell/visualgit/internal/analysis"
	"github.com/aezell/visualgit/internal/git"
	"github.com/aezell/visualgit/internal/stream"
)

const testDiff = `diff --git a/main.go b/main.go
index abc1234..def5678 100644
--- a/main.go
+++ b/main.go
@@ -1,5 +1,6 @@
 package main

 func main() {
-	println("hello")
+	println("hello world")
+	println("goodbye")
 }
diff --git a/util.go b/util.go
new file mode 100644
--- /dev/null
+++ b/util.go
@@ -0,0 +1,5 @@
+package main
+
+func add(a, b int) int {
+	return a + b
+}
`

const (
	fakeEngineEnv = "VISUALGIT_FAKE_ENGINE"
	enginePIDEnv  = "VISUALGIT_ENGINE_PIDFILE"
)

func TestMain(m *testing.M) {
	if mode := os.Getenv(fakeEngineEnv); mode != "" {
		io.ReadAll(os.Stdin)
		switch mode {
		case "ok":
			fmt.Print("hello brave new world")
		case "args":
			fmt.Print(strings.Join(os.Args[1:], " "))
		case "fail":
			fmt.Fprintln(os.Stderr, "permission denied")
			os.Exit(1)
		case "hang":
			os.WriteFile(os.Getenv(enginePIDEnv), []byte(strconv.Itoa(os.Getpid())), 0o644)
			time.Sleep(time.Minute)
		}
		os.Exit(0)
	}
	os.Exit(m.Run())
}

// newTestServer returns a server whose engine is this test binary running
// in the given fake engine mode.
func newTestServer(t *testing.T, mode string) *Server {
	t.Helper()
	t.Setenv(fakeEngineEnv, mode)
	exe, err := os.Executable()
	require.NoError(t, err)
	dir := t.TempDir()
	session := analysis.NewSession(analysis.Options{
		Dir: dir,
		Engine: &analysis.Engine{
			ClaudeCommand: exe,
			ClaudeModel:   analysis.DefaultClaudeModel,
			OpenAICommand: exe,
			OpenAIModel:   "gpt-4o",
		},
	})
	return New(Options{Addr: ":0", Repo: git.NewRepo(dir), Session: session})
}

func postJSON(t *testing.T, srv *Server, path string, v any) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(v)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func readFrames(t *testing.T, body io.Reader) []stream.Frame {
	t.Helper()
	d := stream.NewDecoder(body)
	var frames []stream.Frame
	for {
		f, err := d.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		frames = append(frames, f)
	}
	assert.Empty(t, d.Issues(), "malformed frames")
	return frames
}

func streamText(frames []stream.Frame) string {
	var b strings.Builder
	for _, f := range frames {
		b.WriteString(f.Text)
	}
	return b.String()
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, "ok")

	var resp map[string]string
	getJSON(t, srv, "/health", &resp)
	assert.Equal(t, "ok", resp["status"])
}

func TestParseEndpoint(t *testing.T) {
	srv := newTestServer(t, "ok")

	w := postJSON(t, srv, "/api/diff/parse", parseRequest{Diff: testDiff})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp parseResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	require.Len(t, resp.Files, 2)
	assert.Equal(t, "main.go", resp.Files[0].Path)
	assert.EqualValues(t, "added", resp.Files[1].Status)
	assert.Equal(t, 7, resp.Summary.TotalAdditions)
	assert.Equal(t, 1, resp.Summary.TotalDeletions)
	assert.NotNil(t, resp.Issues)
	assert.Empty(t, resp.Issues)
}

func TestParseEndpointReportsIssues(t *testing.T) {
	srv := newTestServer(t, "ok")

	w := postJSON(t, srv, "/api/diff/parse", parseRequest{Diff: "diff --git nonsense\n@@ -1 +1 @@\n+x\n"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp parseResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Files)
	assert.Len(t, resp.Issues, 1)
}

func TestParseEmptyDiff(t *testing.T) {
	srv := newTestServer(t, "ok")

	w := postJSON(t, srv, "/api/diff/parse", parseRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyzeInvalidJSON(t *testing.T) {
	srv := newTestServer(t, "ok")

	req := httptest.NewRequest(http.MethodPost, "/api/ai/analyze", strings.NewReader("{bad json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyzeMissingContent(t *testing.T) {
	srv := newTestServer(t, "ok")

	w := postJSON(t, srv, "/api/ai/analyze", map[string]string{"provider": "claude"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "content is required", resp["error"])
}

func TestAnalyzeUnknownProvider(t *testing.T) {
	srv := newTestServer(t, "ok")

	w := postJSON(t, srv, "/api/ai/analyze", map[string]string{"provider": "gemini", "content": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyzeStreams(t *testing.T) {
	srv := newTestServer(t, "ok")

	w := postJSON(t, srv, "/api/ai/analyze", map[string]string{"content": testDiff})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))

	frames := readFrames(t, w.Body)
	require.Len(t, frames, 3, "two text frames and done")
	assert.Equal(t, "hello brave new ", frames[0].Text)
	assert.Equal(t, "world ", frames[1].Text)
	assert.True(t, frames[2].Done, "done frame last")
}

func TestAnalyzeAcceptsDiffField(t *testing.T) {
	srv := newTestServer(t, "ok")

	w := postJSON(t, srv, "/api/ai/analyze", map[string]string{"provider": "openai", "diff": testDiff})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "hello brave new world ", streamText(readFrames(t, w.Body)))
}

func TestAnalyzeEngineFailure(t *testing.T) {
	srv := newTestServer(t, "fail")

	w := postJSON(t, srv, "/api/ai/analyze", map[string]string{"content": "x"})
	require.Equal(t, http.StatusOK, w.Code, "error travels as a frame")

	frames := readFrames(t, w.Body)
	require.Len(t, frames, 1)
	assert.Equal(t, analysisFailed, frames[0].Error)
}

func TestAnalyzeConversationContinuity(t *testing.T) {
	srv := newTestServer(t, "args")
	req := map[string]string{"content": "x", "conversationId": "c1"}

	first := streamText(readFrames(t, postJSON(t, srv, "/api/ai/analyze", req).Body))
	assert.NotContains(t, first, "--resume", "first call")
	second := streamText(readFrames(t, postJSON(t, srv, "/api/ai/analyze", req).Body))
	assert.Contains(t, second, "--resume", "second call")

	other := streamText(readFrames(t, postJSON(t, srv, "/api/ai/analyze", map[string]string{"content": "x", "conversationId": "c2"}).Body))
	assert.NotContains(t, other, "--resume", "other conversation")

	del := httptest.NewRequest(http.MethodDelete, "/api/ai/conversations/c1", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, del)
	require.Equal(t, http.StatusNoContent, w.Code)

	third := streamText(readFrames(t, postJSON(t, srv, "/api/ai/analyze", req).Body))
	assert.NotContains(t, third, "--resume", "forgotten conversation")
}

func TestAnalyzeClientDisconnectStopsEngine(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "engine.pid")
	t.Setenv(enginePIDEnv, pidFile)
	srv := newTestServer(t, "hang")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	body, _ := json.Marshal(map[string]string{"content": "x"})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.URL+"/api/ai/analyze", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	errc := make(chan error, 1)
	go func() {
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			_, err = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		errc <- err
	}()

	var pid int
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(pidFile)
		if err != nil {
			return false
		}
		pid, err = strconv.Atoi(strings.TrimSpace(string(data)))
		return err == nil && pid > 0
	}, 10*time.Second, 20*time.Millisecond, "engine never started")

	cancel()
	assert.Error(t, <-errc, "cancelled request")

	assert.Eventually(t, func() bool { return !processAlive(pid) },
		10*time.Second, 50*time.Millisecond, "engine still running after the client went away")
}

func processAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return p.Signal(syscall.Signal(0)) == nil
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, "ok")
	req := httptest.NewRequest(http.MethodGet, "/api/ai/analyze", nil)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

// --- Git endpoints ---

func gitRun(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v\n%s", args, out)
}

func newRepoServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	gitRun(t, dir, "init")
	gitRun(t, dir, "symbolic-ref", "HEAD", "refs/heads/main")
	gitRun(t, dir, "config", "user.name", "Test User")
	gitRun(t, dir, "config", "user.email", "test@example.com")
	gitRun(t, dir, "config", "commit.gpgsign", "false")

	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
		gitRun(t, dir, "add", name)
	}
	write("a.txt", "one\ntwo\n")
	gitRun(t, dir, "commit", "-m", "first")
	gitRun(t, dir, "checkout", "-b", "feature")
	write("a.txt", "one\n2\nthree\n")
	write("b.txt", "new\n")
	gitRun(t, dir, "commit", "-m", "second")

	return New(Options{Addr: ":0", Repo: git.NewRepo(dir)})
}

func getJSON(t *testing.T, srv *Server, path string, v any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, "GET %s: %s", path, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestGitStatusOutsideRepo(t *testing.T) {
	srv := newTestServer(t, "ok")

	var resp gitStatusResponse
	getJSON(t, srv, "/api/git/status", &resp)
	assert.False(t, resp.IsGitRepo, "temp dir is not a repository")
}

func TestGitEndpoints(t *testing.T) {
	srv := newRepoServer(t)

	var status gitStatusResponse
	getJSON(t, srv, "/api/git/status", &status)
	assert.True(t, status.IsGitRepo)

	var info gitInfoResponse
	getJSON(t, srv, "/api/git/info", &info)
	assert.Equal(t, "feature", info.CurrentBranch)
	assert.Equal(t, "main", info.BaseBranch)
	assert.Equal(t, 1, info.Ahead)
	assert.Equal(t, 0, info.Behind)
	assert.Equal(t, "local/repo", info.RepoName)

	var d gitDiffResponse
	getJSON(t, srv, "/api/git/diff", &d)
	require.Equal(t, 2, d.Summary.FilesChanged)
	assert.Equal(t, 3, d.Summary.TotalAdditions)
	assert.Equal(t, 1, d.Summary.TotalDeletions)
	assert.True(t, strings.HasPrefix(d.RawDiff, "diff --git a/a.txt b/a.txt"), d.RawDiff)
	require.Len(t, d.Files, 2)
	assert.Equal(t, "b.txt", d.Files[1].Path)
	assert.EqualValues(t, "added", d.Files[1].Status)
}

// --- WebSocket ---

func dialWS(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ai/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWSError(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	var msg wsMessage
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, wsMsgError, msg.Type, string(msg.Data))
	var payload map[string]string
	require.NoError(t, json.Unmarshal(msg.Data, &payload))
	return payload["message"]
}

func TestWebSocketAnalyze(t *testing.T) {
	conn := dialWS(t, newTestServer(t, "ok"))

	data, _ := json.Marshal(analyzeRequest{Diff: testDiff})
	require.NoError(t, conn.WriteJSON(wsMessage{Type: wsMsgAnalyze, Data: data}))

	var text strings.Builder
	for {
		var msg wsMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == wsMsgDone {
			break
		}
		require.Equal(t, wsMsgText, msg.Type, string(msg.Data))
		var frag wsText
		require.NoError(t, json.Unmarshal(msg.Data, &frag))
		text.WriteString(frag.Text)
	}

	assert.Equal(t, "hello brave new world ", text.String())
}

func TestWebSocketEngineFailure(t *testing.T) {
	conn := dialWS(t, newTestServer(t, "fail"))

	data, _ := json.Marshal(map[string]string{"content": "x"})
	require.NoError(t, conn.WriteJSON(wsMessage{Type: wsMsgAnalyze, Data: data}))

	assert.Equal(t, analysisFailed, readWSError(t, conn))
}

func TestWebSocketBadMessages(t *testing.T) {
	conn := dialWS(t, newTestServer(t, "ok"))

	tests := []struct {
		name string
		msg  wsMessage
		want string
	}{
		{"unknown type", wsMessage{Type: "approve"}, "unknown message type: approve"},
		{"missing content", wsMessage{Type: wsMsgAnalyze, Data: json.RawMessage(`{}`)}, "content is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, conn.WriteJSON(tt.msg))
			assert.Equal(t, tt.want, readWSError(t, conn))
		})
	}
}

func TestWebSocketCancelWithoutRun(t *testing.T) {
	conn := dialWS(t, newTestServer(t, "ok"))

	// cancel with nothing running is a no-op; the socket stays usable
	require.NoError(t, conn.WriteJSON(wsMessage{Type: wsMsgCancel}))
	data, _ := json.Marshal(map[string]string{"content": "x"})
	require.NoError(t, conn.WriteJSON(wsMessage{Type: wsMsgAnalyze, Data: data}))

	var msg wsMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, wsMsgText, msg.Type)
}
