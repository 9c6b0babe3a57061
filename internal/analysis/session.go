package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aezell/visualgit/internal/model"
)

// killGrace is how long a cancelled engine gets to exit after the
// interrupt before it is killed.
const killGrace = 3 * time.Second

// nestedEnv lists variables that tell an engine it runs inside another
// agent. They are stripped so the engine behaves as a top-level run.
var nestedEnv = []string{"CLAUDECODE", "CLAUDE_CODE_ENTRYPOINT"}

// EngineError reports an engine run that produced no output.
type EngineError struct {
	Command  string
	ExitCode int    // -1 when the process never ran or was killed
	Stderr   string // trimmed
	Err      error  // spawn or wait failure, if any
}

func (e *EngineError) Error() string {
	switch {
	case e.Stderr != "":
		return e.Stderr
	case e.Err != nil:
		return fmt.Sprintf("running %s: %v", e.Command, e.Err)
	default:
		return fmt.Sprintf("exited with code %d", e.ExitCode)
	}
}

func (e *EngineError) Unwrap() error { return e.Err }

// Options configures a Session.
type Options struct {
	Dir        string // engine working directory, normally the repo root
	Engine     *Engine
	Provider   model.Provider // used when a request names none
	Timeout    time.Duration  // 0 means only the caller's context bounds a run
	ChunkWords int
	Logger     *log.Logger
}

// Session runs analysis requests against the external engine and tracks
// per-conversation continuity. It is safe for concurrent use.
type Session struct {
	engine        *Engine
	dir           string
	provider      model.Provider
	timeout       time.Duration
	chunkWords    int
	conversations *Conversations
	logger        *log.Logger
}

// NewSession returns a Session with an empty conversation store.
func NewSession(opts Options) *Session {
	s := &Session{
		engine:        opts.Engine,
		dir:           opts.Dir,
		provider:      opts.Provider,
		timeout:       opts.Timeout,
		chunkWords:    opts.ChunkWords,
		conversations: NewConversations(),
		logger:        opts.Logger,
	}
	if s.engine == nil {
		s.engine = NewEngine()
	}
	if s.provider == "" {
		s.provider = model.ProviderClaude
	}
	if s.chunkWords < 1 {
		s.chunkWords = DefaultChunkWords
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard, "", 0)
	}
	return s
}

// Conversations exposes the session's conversation store.
func (s *Session) Conversations() *Conversations {
	return s.conversations
}

// Resolve validates req and returns the command it would run without
// running it.
func (s *Session) Resolve(req *model.Request) (Command, error) {
	if err := req.Validate(s.provider); err != nil {
		return Command{}, err
	}
	return s.engine.Resolve(req.Provider, req.Model, s.conversations.Get(req.ConversationID))
}

// Run executes one analysis and returns the engine's answer as fragments
// of a few words each. A non-zero exit still counts as success when the
// engine wrote anything to stdout. Cancelling ctx interrupts the engine.
func (s *Session) Run(ctx context.Context, req model.Request) (iter.Seq[string], error) {
	cmd, err := s.Resolve(&req)
	if err != nil {
		return nil, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := s.exec(ctx, cmd, BuildPrompt(req.Mode, req.Content, req.FilePath))
	if err != nil {
		s.conversations.Abandon(req.ConversationID)
		s.logger.Printf("%s %s failed after %s: %v", req.Provider, req.Mode, time.Since(start).Round(time.Millisecond), err)
		return nil, err
	}

	if req.Provider == model.ProviderClaude {
		s.conversations.MarkContinued(req.ConversationID)
	}
	s.logger.Printf("%s %s: %d bytes in %s", req.Provider, req.Mode, len(out), time.Since(start).Round(time.Millisecond))

	return Chunks(out, s.chunkWords), nil
}

// exec runs c with prompt on stdin and returns everything it wrote to
// stdout.
func (s *Session) exec(ctx context.Context, c Command, prompt string) (string, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = s.dir
	cmd.Env = engineEnv(os.Environ())
	cmd.Stdin = strings.NewReader(prompt)
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = killGrace

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", &EngineError{Command: c.Name, ExitCode: -1, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", &EngineError{Command: c.Name, ExitCode: -1, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return "", &EngineError{Command: c.Name, ExitCode: -1, Err: err}
	}

	var outBuf, errBuf bytes.Buffer
	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(&outBuf, stdout)
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(&errBuf, stderr)
		return err
	})
	copyErr := g.Wait()
	waitErr := cmd.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", fmt.Errorf("%s: %w", c.Name, ctxErr)
	}

	code := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return "", &EngineError{Command: c.Name, ExitCode: -1, Err: waitErr}
		}
		code = exitErr.ExitCode()
	}
	if copyErr != nil && outBuf.Len() == 0 {
		return "", &EngineError{Command: c.Name, ExitCode: code, Err: copyErr}
	}

	if code != 0 {
		if outBuf.Len() == 0 {
			return "", &EngineError{
				Command:  c.Name,
				ExitCode: code,
				Stderr:   strings.TrimSpace(errBuf.String()),
			}
		}
		s.logger.Printf("%s exited with code %d but wrote output; keeping it", c.Name, code)
	}

	return outBuf.String(), nil
}

func engineEnv(env []string) []string {
	out := make([]string, 0, len(env))
next:
	for _, kv := range env {
		for _, name := range nestedEnv {
			if strings.HasPrefix(kv, name+"=") {
				continue next
			}
		}
		out = append(out, kv)
	}
	return out
}
