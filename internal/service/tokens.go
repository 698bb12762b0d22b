package service

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"

	"portfolio-edge/internal/llm"
)

// Per-message overhead for role and framing (approximate)
const messageOverhead = 4

// TiktokenCounter counts tokens with the cl100k_base encoding.
type TiktokenCounter struct {
	codec tokenizer.Codec
}

// ------------------------------------------------------------------------------------------------------
func NewTiktokenCounter() (*TiktokenCounter, error) {
	enc, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokenizer: %w", err)
	}
	return &TiktokenCounter{codec: enc}, nil
}

// ------------------------------------------------------------------------------------------------------
func (c *TiktokenCounter) CountTokens(messages []llm.Message) (int, error) {
	totalTokens := 0
	for _, msg := range messages {
		tokens, _, err := c.codec.Encode(msg.Content)
		if err != nil {
			return 0, fmt.Errorf("failed to encode content: %w", err)
		}
		totalTokens += len(tokens) + messageOverhead
	}
	return totalTokens, nil
}
