package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"slices"
	"strings"

	"github.com/aezell/visualgit/internal/model"
	"github.com/aezell/visualgit/internal/stream"
)

// remote sends analysis requests to a running visualgit server.
type remote struct {
	base   string
	client *http.Client
	onSkip func(stream.Issue)
}

func newRemote(base string) *remote {
	return &remote{base: strings.TrimRight(base, "/"), client: http.DefaultClient}
}

// analyze posts req and calls emit with each text frame as it arrives.
// An error frame ends the stream with that message as the error.
func (r *remote) analyze(ctx context.Context, req model.Request, emit func(string)) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.base+"/api/ai/analyze", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("contacting %s: %w", r.base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return fmt.Errorf("server: %s", e.Error)
		}
		return fmt.Errorf("server returned %s", resp.Status)
	}

	dec := stream.NewDecoder(resp.Body)
	defer func() {
		if r.onSkip != nil {
			for _, issue := range dec.Issues() {
				r.onSkip(issue)
			}
		}
	}()
	for {
		f, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return errors.New("stream ended without a done frame")
		}
		if err != nil {
			return err
		}
		switch {
		case f.Error != "":
			return errors.New(f.Error)
		case f.Done:
			return nil
		case f.Text != "":
			emit(f.Text)
		}
	}
}

// Run collects the whole stream before returning, so a failure anywhere
// in it surfaces as the error.
func (r *remote) Run(ctx context.Context, req model.Request) (iter.Seq[string], error) {
	var frags []string
	if err := r.analyze(ctx, req, func(s string) { frags = append(frags, s) }); err != nil {
		return nil, err
	}
	return slices.Values(frags), nil
}
