package sse

import (
	"encoding/json"
	"errors"
	"strings"
)

const (
	dataPrefix  = "data: "
	doneMarker  = "[DONE]"
	commentMark = ":"
)

// ErrIncompleteFrame is returned when a data line carries JSON that does not
// parse. It is a framing condition, not a stream failure.
var ErrIncompleteFrame = errors.New("incomplete sse frame")

// FrameKind classifies a parsed line.
type FrameKind int

const (
	FrameSkip FrameKind = iota
	FrameDelta
	FrameDone
)

// Frame is the decoded form of one line.
type Frame struct {
	Kind    FrameKind
	Content string
}

// Chunk is the subset of a streamed chat-completion object we read.
type Chunk struct {
	Choices []Choice `json:"choices"`
}

// Choice represents a choice in the response
type Choice struct {
	Delta *Delta `json:"delta,omitempty"`
}

// Delta represents incremental content in streaming
type Delta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// ------------------------------------------------------------------------------------------------------
// ParseLine decodes a single line with its line terminator removed.
func ParseLine(line string) (Frame, error) {
	if isIgnorable(line) || !strings.HasPrefix(line, dataPrefix) {
		return Frame{Kind: FrameSkip}, nil
	}
	return ParsePayload(strings.TrimPrefix(line, dataPrefix))
}

// ------------------------------------------------------------------------------------------------------
// ParsePayload decodes the text after the "data: " prefix.
func ParsePayload(payload string) (Frame, error) {
	if strings.TrimSpace(payload) == doneMarker {
		return Frame{Kind: FrameDone}, nil
	}

	var chunk Chunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return Frame{}, ErrIncompleteFrame
	}

	if len(chunk.Choices) == 0 || chunk.Choices[0].Delta == nil {
		return Frame{Kind: FrameDelta}, nil
	}
	return Frame{Kind: FrameDelta, Content: chunk.Choices[0].Delta.Content}, nil
}

func isIgnorable(line string) bool {
	return strings.TrimSpace(line) == "" || strings.HasPrefix(line, commentMark)
}
