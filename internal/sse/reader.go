// Package sse splits a chunked byte stream into lines and decodes the
// chat-completion frames carried on "data: " lines.
package sse

import (
	"bytes"
)

// LineReader accumulates raw bytes and hands back complete lines. Bytes are
// kept undecoded until their terminating newline arrives, so a multi-byte
// character split across two reads is reassembled before it is converted.
type LineReader struct {
	buf []byte
}

// Feed appends a chunk read from the stream.
func (lr *LineReader) Feed(chunk []byte) {
	lr.buf = append(lr.buf, chunk...)
}

// Lines removes and returns every complete line currently buffered, without
// the trailing "\n" or "\r\n". The unterminated remainder stays buffered.
func (lr *LineReader) Lines() []string {
	var lines []string
	for {
		idx := bytes.IndexByte(lr.buf, '\n')
		if idx < 0 {
			break
		}
		lines = append(lines, string(trimCR(lr.buf[:idx])))
		lr.buf = lr.buf[idx+1:]
	}
	if len(lr.buf) == 0 {
		lr.buf = nil
	}
	return lines
}

// Flush returns whatever is left once the stream has ended.
func (lr *LineReader) Flush() (string, bool) {
	if len(lr.buf) == 0 {
		return "", false
	}
	line := string(trimCR(lr.buf))
	lr.buf = nil
	return line, true
}

// Buffered reports how many bytes are waiting for a newline.
func (lr *LineReader) Buffered() int {
	return len(lr.buf)
}

func trimCR(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\r' {
		return b[:n-1]
	}
	return b
}
