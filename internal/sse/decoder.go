package sse

import (
	"errors"
	"strings"
)

// Decoder turns raw stream chunks into content deltas. A data line whose
// JSON fails to parse is held back and retried once, joined with the next
// data-bearing line; if that also fails the held line is dropped and the new
// line is parsed on its own. Nothing after [DONE] is processed.
type Decoder struct {
	lines   LineReader
	pending string
	done    bool
	dropped int
}

// Feed consumes one chunk and returns the non-empty deltas it completed, in
// arrival order, plus whether the end marker was seen.
func (d *Decoder) Feed(chunk []byte) ([]string, bool) {
	if d.done {
		return nil, true
	}
	d.lines.Feed(chunk)
	return d.drain(d.lines.Lines())
}

// Close processes the unterminated tail of the stream after EOF.
func (d *Decoder) Close() []string {
	if d.done {
		return nil
	}
	var tail []string
	if line, ok := d.lines.Flush(); ok {
		tail = append(tail, line)
	}
	deltas, _ := d.drain(tail)
	if d.pending != "" {
		d.pending = ""
		d.dropped++
	}
	return deltas
}

// Done reports whether [DONE] has been seen.
func (d *Decoder) Done() bool {
	return d.done
}

// Dropped reports how many data lines were abandoned as unparseable.
func (d *Decoder) Dropped() int {
	return d.dropped
}

func (d *Decoder) drain(lines []string) ([]string, bool) {
	var deltas []string
	for _, line := range lines {
		frame, ok := d.decodeLine(line)
		if !ok {
			continue
		}
		if frame.Kind == FrameDone {
			d.done = true
			d.pending = ""
			return deltas, true
		}
		if frame.Kind == FrameDelta && frame.Content != "" {
			deltas = append(deltas, frame.Content)
		}
	}
	return deltas, false
}

func (d *Decoder) decodeLine(line string) (Frame, bool) {
	// Keep-alives and separators do not count as the retry attempt.
	if isIgnorable(line) {
		return Frame{}, false
	}

	if d.pending != "" {
		joined := d.pending + line
		d.pending = ""
		if frame, err := ParsePayload(joined); err == nil {
			return frame, true
		}
		d.dropped++
	}

	frame, err := ParseLine(line)
	if errors.Is(err, ErrIncompleteFrame) {
		d.pending = strings.TrimPrefix(line, dataPrefix)
		return Frame{}, false
	}
	return frame, err == nil
}
