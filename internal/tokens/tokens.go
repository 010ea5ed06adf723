// Package tokens counts model tokens using the cl100k_base encoding,
// matching what downstream LLM callers are billed for.
package tokens

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Counter counts tokens with a lazily initialized tiktoken encoding.
// The encoding data may be downloaded on first use, so initialization is
// deferred off the startup path and guarded for concurrent callers.
type Counter struct {
	encoding string
	enc      *tiktoken.Tiktoken
	once     sync.Once
	initErr  error
}

// NewCounter creates a token counter for the given encoding.
// An empty encoding defaults to cl100k_base.
func NewCounter(encoding string) *Counter {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	return &Counter{encoding: encoding}
}

func (c *Counter) init() error {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding(c.encoding)
		if err != nil {
			c.initErr = fmt.Errorf("init tiktoken encoding %s: %w", c.encoding, err)
			return
		}
		c.enc = enc
	})
	return c.initErr
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) (int, error) {
	if err := c.init(); err != nil {
		return 0, err
	}
	return len(c.enc.Encode(text, nil, nil)), nil
}
