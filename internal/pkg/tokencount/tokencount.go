// Package tokencount estimates how many model tokens a piece of text costs.
package tokencount

import (
	"log/slog"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// DefaultEncoding is the BPE encoding used by current chat models.
const DefaultEncoding = "cl100k_base"

var loaderOnce sync.Once

// Counter counts tokens with a BPE encoder. When the encoder cannot be
// loaded it degrades to Approximate for every call.
type Counter struct {
	encoding string
	tke      *tiktoken.Tiktoken
}

// New loads the named encoding from the embedded BPE ranks. A load failure
// is logged once and the returned Counter approximates.
func New(encoding string, logger *slog.Logger) *Counter {
	if logger == nil {
		logger = slog.Default()
	}
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})

	tke, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		logger.Warn("token encoder unavailable, approximating with len/4",
			"encoding", encoding,
			"error", err,
		)
		return &Counter{encoding: encoding}
	}
	return &Counter{encoding: encoding, tke: tke}
}

// Count returns the exact token count, or Approximate(text) when no
// encoder is loaded.
func (c *Counter) Count(text string) int {
	if c == nil || c.tke == nil {
		return Approximate(text)
	}
	return len(c.tke.Encode(text, nil, nil))
}

// Exact reports whether Count uses a real tokenizer.
func (c *Counter) Exact() bool {
	return c != nil && c.tke != nil
}

// Approximate is the tokenizer-free estimate: byte length divided by four,
// rounded down.
func Approximate(text string) int {
	return len(text) / 4
}
