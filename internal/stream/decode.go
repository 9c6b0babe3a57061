package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"strings"
)

const maxFrameSize = 1 << 20

// Issue records a frame the Decoder dropped.
type Issue struct {
	Frame   int // 1-based position among delimited blocks
	Payload string
	Reason  string
}

// Decoder reads frames from an event stream. Blocks may arrive split
// across any number of reads. Blocks without a data line are skipped, and
// blocks whose payload is not valid JSON are dropped and recorded as
// issues.
type Decoder struct {
	sc     *bufio.Scanner
	n      int
	issues []Issue
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxFrameSize)
	sc.Split(splitFrames)
	return &Decoder{sc: sc}
}

// Next returns the next well-formed frame, or io.EOF when the stream ends.
func (d *Decoder) Next() (Frame, error) {
	for d.sc.Scan() {
		d.n++
		payload, ok := dataPayload(d.sc.Text())
		if !ok {
			continue
		}
		var f Frame
		if err := json.Unmarshal([]byte(payload), &f); err != nil {
			d.issues = append(d.issues, Issue{Frame: d.n, Payload: payload, Reason: err.Error()})
			continue
		}
		return f, nil
	}
	if err := d.sc.Err(); err != nil {
		return Frame{}, err
	}
	return Frame{}, io.EOF
}

// Issues returns the frames dropped so far.
func (d *Decoder) Issues() []Issue {
	return d.issues
}

// splitFrames is a bufio.SplitFunc yielding blocks separated by a blank
// line. A trailing block without the delimiter is returned at EOF.
func splitFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if i := bytes.Index(data, []byte("\n\n")); i >= 0 {
		return i + 2, data[:i], nil
	}
	if atEOF && len(bytes.TrimSpace(data)) > 0 {
		return len(data), data, nil
	}
	if atEOF {
		return len(data), nil, nil
	}
	return 0, nil, nil
}

// dataPayload joins the data lines of one block.
func dataPayload(block string) (string, bool) {
	var parts []string
	for line := range strings.SplitSeq(block, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if v, ok := strings.CutPrefix(line, "data:"); ok {
			parts = append(parts, strings.TrimPrefix(v, " "))
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "\n"), true
}
