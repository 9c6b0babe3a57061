// Package stream carries analysis fragments over Server-Sent Events.
//
// Every frame is a single "data: <json>" line followed by a blank line.
// A stream is zero or more text frames and then exactly one terminal frame,
// either {"done":true} or {"error":"..."}.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
)

// Frame is one event payload.
type Frame struct {
	Text  string `json:"text,omitempty"`
	Done  bool   `json:"done,omitempty"`
	Error string `json:"error,omitempty"`
}

// Terminal reports whether f ends a stream.
func (f Frame) Terminal() bool {
	return f.Done || f.Error != ""
}

// SetHeaders prepares an HTTP response for an event stream.
func SetHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

type flusher interface {
	Flush() error
}

// Encoder writes frames to w, flushing after each one when w supports it.
type Encoder struct {
	w     io.Writer
	flush func() error
}

// NewEncoder returns an Encoder writing to w. An http.ResponseWriter is
// flushed through http.ResponseController.
func NewEncoder(w io.Writer) *Encoder {
	e := &Encoder{w: w}
	switch fw := w.(type) {
	case http.ResponseWriter:
		rc := http.NewResponseController(fw)
		e.flush = rc.Flush
	case flusher:
		e.flush = fw.Flush
	}
	return e
}

// Encode writes one frame.
func (e *Encoder) Encode(f Frame) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	if e.flush != nil {
		if err := e.flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return err
		}
	}
	return nil
}

// Text writes a text frame.
func (e *Encoder) Text(s string) error {
	return e.Encode(Frame{Text: s})
}

// Done writes the success terminal frame.
func (e *Encoder) Done() error {
	return e.Encode(Frame{Done: true})
}

// Error writes the failure terminal frame.
func (e *Encoder) Error(msg string) error {
	return e.Encode(Frame{Error: msg})
}

// Relay writes every fragment of seq as a text frame and then the done
// frame. It stops without a terminal frame when ctx ends or a write fails,
// since the reader is gone in both cases.
func Relay(ctx context.Context, enc *Encoder, seq iter.Seq[string]) error {
	for frag := range seq {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := enc.Text(frag); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return enc.Done()
}
