package digest

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
	"go.uber.org/zap"
)

// TokenCounter counts tokens for one model. Implementations must be deterministic.
type TokenCounter interface {
	CountTokens(text string) int
}

// TiktokenCounter counts BPE tokens with the encoding tiktoken associates with a model.
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken

	mu    sync.Mutex
	cache map[string]int
}

const fallbackEncoding = "cl100k_base"

// BPE ranks ship embedded in the binary so counting never needs the network.
func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// NewTiktokenCounter returns a counter for model, falling back to cl100k_base for models
// tiktoken does not know.
func NewTiktokenCounter(model string) (*TiktokenCounter, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil, fmt.Errorf("load tokenizer: %w", err)
		}
	}
	return &TiktokenCounter{encoding: enc, cache: map[string]int{}}, nil
}

// CountTokens returns the number of tokens in text. Results for short strings are memoized
// because the chunker recounts the growing chunk on every segment.
func (c *TiktokenCounter) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	const maxCachedLen = 256
	if len(text) <= maxCachedLen {
		c.mu.Lock()
		n, ok := c.cache[text]
		c.mu.Unlock()
		if ok {
			return n
		}
	}

	c.mu.Lock()
	n := len(c.encoding.Encode(text, nil, nil))
	if len(text) <= maxCachedLen {
		c.cache[text] = n
	}
	c.mu.Unlock()
	return n
}

// CharCounter measures size in characters (runes).
type CharCounter struct{}

func (CharCounter) CountTokens(text string) int { return utf8.RuneCountInString(text) }

// CountAny counts tokens for v, coercing non-string values to their string form with a warning.
func CountAny(counter TokenCounter, v any, logger *zap.Logger) int {
	switch s := v.(type) {
	case string:
		return counter.CountTokens(s)
	case nil:
		return 0
	default:
		if logger != nil {
			logger.Warn("counting tokens of non-string input", zap.String("type", fmt.Sprintf("%T", v)))
		}
		return counter.CountTokens(fmt.Sprint(v))
	}
}

// PromptBudget returns the tokens left for the prompt once the fixed parts of a call are reserved.
func PromptBudget(maxContext, systemTokens, schemaTokens, reservedResponse int) (int, error) {
	budget := maxContext - systemTokens - schemaTokens - reservedResponse
	if budget <= 0 {
		return 0, fmt.Errorf("%w: prompt budget %d (max=%d system=%d schema=%d response=%d)",
			ErrConfiguration, budget, maxContext, systemTokens, schemaTokens, reservedResponse)
	}
	return budget, nil
}
