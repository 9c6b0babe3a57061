// Package model defines the core data types shared across visualgit.
package model

import (
	"errors"
	"fmt"
	"strings"
)

// Provider names the external generation engine that explains a change.
type Provider string

const (
	ProviderClaude Provider = "claude"
	ProviderOpenAI Provider = "openai"
)

// ParseProvider maps a user-supplied name to a Provider.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderClaude, ProviderOpenAI:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
	}
}

func (p Provider) String() string {
	return string(p)
}

// Mode selects what part of the change an analysis covers.
type Mode string

const (
	ModeFull      Mode = "full"      // the whole diff
	ModeFile      Mode = "file"      // one file's lines
	ModeSelection Mode = "selection" // a highlighted fragment
)

// ParseMode maps a user-supplied name to a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeFull, ModeFile, ModeSelection:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

func (m Mode) String() string {
	return string(m)
}

var (
	ErrMissingContent  = errors.New("content is required")
	ErrUnknownProvider = errors.New("unknown provider")
	ErrUnknownMode     = errors.New("unknown mode")
)

// Request asks for an explanation of some piece of a change.
type Request struct {
	Provider Provider `json:"provider,omitempty"`
	Mode     Mode     `json:"mode,omitempty"`
	Content  string   `json:"content"`
	FilePath string   `json:"filePath,omitempty"` // prompt phrasing only; ignored in full mode
	Model    string   `json:"model,omitempty"`

	// ConversationID scopes engine continuity. Requests without one share
	// the default conversation.
	ConversationID string `json:"conversationId,omitempty"`
}

// Validate fills in defaults and checks the request is usable.
func (r *Request) Validate(defaultProvider Provider) error {
	if r.Content == "" {
		return ErrMissingContent
	}
	if r.Provider == "" {
		r.Provider = defaultProvider
	}
	p, err := ParseProvider(string(r.Provider))
	if err != nil {
		return err
	}
	r.Provider = p
	if r.Mode == "" {
		r.Mode = ModeFull
	}
	m, err := ParseMode(string(r.Mode))
	if err != nil {
		return err
	}
	r.Mode = m
	return nil
}
