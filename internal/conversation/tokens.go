// internal/conversation/tokens.go
package conversation

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/threadkeeper/internal/types"
)

// Counter estimates the token footprint of a working conversation so the
// sweeper can decide when a thread needs compaction.
type Counter struct {
	tokenizer *tiktoken.Tiktoken
}

// NewCounter creates a Counter using the tokenizer for the given model name.
func NewCounter(model string) (*Counter, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Fallback to cl100k_base for unknown models
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return &Counter{tokenizer: enc}, nil
}

// Count returns the token count for a string.
func (c *Counter) Count(text string) int {
	return len(c.tokenizer.Encode(text, nil, nil))
}

// CountEvents returns the total token count across event payloads.
func (c *Counter) CountEvents(events []*types.Event) int {
	total := 0
	for _, event := range events {
		total += c.Count(string(event.Payload))
	}
	return total
}
