package api

import (
	"errors"
	"net/http"

	"github.com/aezell/visualgit/internal/diff"
	"github.com/aezell/visualgit/internal/model"
	"github.com/aezell/visualgit/internal/stream"
)

// analysisFailed is the only failure text clients see; the cause is logged.
const analysisFailed = "AI analysis failed"

// --- Health ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Git ---

type gitStatusResponse struct {
	IsGitRepo bool `json:"isGitRepo"`
}

func (s *Server) handleGitStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, gitStatusResponse{IsGitRepo: s.repo.IsRepo(r.Context())})
}

type gitInfoResponse struct {
	RepoName      string `json:"repoName"`
	CurrentBranch string `json:"currentBranch"`
	BaseBranch    string `json:"baseBranch"`
	Ahead         int    `json:"ahead"`
	Behind        int    `json:"behind"`
}

func (s *Server) handleGitInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	current, err := s.repo.CurrentBranch(ctx)
	if err != nil {
		s.logger.Printf("git info: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to read git info")
		return
	}
	base := s.repo.BaseBranch(ctx, current)
	ahead, behind := s.repo.AheadBehind(ctx, base, current)

	writeJSON(w, http.StatusOK, gitInfoResponse{
		RepoName:      s.repo.RepoName(ctx),
		CurrentBranch: current,
		BaseBranch:    base,
		Ahead:         ahead,
		Behind:        behind,
	})
}

type diffSummary struct {
	FilesChanged   int `json:"filesChanged"`
	TotalAdditions int `json:"totalAdditions"`
	TotalDeletions int `json:"totalDeletions"`
}

type gitDiffResponse struct {
	RawDiff string       `json:"rawDiff"`
	Files   []*diff.File `json:"files"`
	Summary diffSummary  `json:"summary"`
}

func (s *Server) handleGitDiff(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	current, err := s.repo.CurrentBranch(ctx)
	if err != nil {
		s.logger.Printf("git diff: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to compute diff")
		return
	}
	raw, err := s.repo.Diff(ctx, s.repo.BaseBranch(ctx, current), current)
	if err != nil {
		s.logger.Printf("git diff: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to compute diff")
		return
	}

	ds := diff.Parse(raw)
	logIssues(s, ds)
	writeJSON(w, http.StatusOK, gitDiffResponse{
		RawDiff: raw,
		Files:   filesOf(ds),
		Summary: summaryOf(ds),
	})
}

// --- Parse ---

type parseRequest struct {
	Diff string `json:"diff"`
}

type parseResponse struct {
	Files   []*diff.File `json:"files"`
	Summary diffSummary  `json:"summary"`
	Issues  []diff.Issue `json:"issues"`
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	if req.Diff == "" {
		writeError(w, http.StatusBadRequest, "diff is required")
		return
	}

	ds := diff.Parse(req.Diff)
	issues := ds.Issues
	if issues == nil {
		issues = []diff.Issue{}
	}
	writeJSON(w, http.StatusOK, parseResponse{
		Files:   filesOf(ds),
		Summary: summaryOf(ds),
		Issues:  issues,
	})
}

func filesOf(ds *diff.DiffSet) []*diff.File {
	if ds.Files == nil {
		return []*diff.File{}
	}
	return ds.Files
}

func summaryOf(ds *diff.DiffSet) diffSummary {
	n, added, deleted := ds.Stats()
	return diffSummary{FilesChanged: n, TotalAdditions: added, TotalDeletions: deleted}
}

func logIssues(s *Server, ds *diff.DiffSet) {
	for _, is := range ds.Issues {
		s.logger.Printf("diff: skipped %s", is)
	}
}

// --- Analyze ---

// analyzeRequest accepts "diff" as an older name for content.
type analyzeRequest struct {
	model.Request
	Diff string `json:"diff,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if req.Content == "" {
		req.Content = req.Diff
	}

	if _, err := s.session.Resolve(&req.Request); err != nil {
		status := http.StatusBadRequest
		if !isClientError(err) {
			status = http.StatusInternalServerError
		}
		writeError(w, status, err.Error())
		return
	}

	stream.SetHeaders(w.Header())
	w.WriteHeader(http.StatusOK)
	enc := stream.NewEncoder(w)
	http.NewResponseController(w).Flush()

	ctx := r.Context()
	seq, err := s.session.Run(ctx, req.Request)
	if err != nil {
		if ctx.Err() != nil {
			s.logger.Printf("analyze: client went away: %v", err)
			return
		}
		s.logger.Printf("analyze: %v", err)
		enc.Error(analysisFailed)
		return
	}

	if err := stream.Relay(ctx, enc, seq); err != nil {
		s.logger.Printf("analyze: stream aborted: %v", err)
	}
}

// --- Conversations ---

func (s *Server) handleForgetConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "conversation id is required")
		return
	}
	s.session.Conversations().Reset(id)
	w.WriteHeader(http.StatusNoContent)
}

// isClientError reports whether err comes from a bad request rather than a
// failed engine run.
func isClientError(err error) bool {
	return errors.Is(err, model.ErrMissingContent) ||
		errors.Is(err, model.ErrUnknownProvider) ||
		errors.Is(err, model.ErrUnknownMode)
}
