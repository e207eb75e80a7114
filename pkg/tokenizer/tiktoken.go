package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is used when no tiktoken encoding name is configured.
const DefaultEncoding = "cl100k_base"

// Tiktoken wraps a tiktoken encoding. It adds no special tokens and cannot be extended.
type Tiktoken struct {
	model *tiktoken.Tiktoken
	pad   int
}

// NewTiktoken loads the named encoding.
func NewTiktoken(encoding string, padID int) (*Tiktoken, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	tkm, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tokenizer: %w", err)
	}
	return &Tiktoken{model: tkm, pad: padID}, nil
}

func (t *Tiktoken) EncodePlus(text string) (Encoding, error) {
	if t.model == nil {
		return Encoding{}, fmt.Errorf("tokenizer not initialized")
	}
	ids := t.model.Encode(text, nil, nil)
	return Encoding{InputIDs: ids, AttentionMask: onesMask(len(ids))}, nil
}

// ConvertIDsToTokens decodes every id on its own.
func (t *Tiktoken) ConvertIDsToTokens(ids []int) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = t.model.Decode([]int{id})
	}
	return out
}

// ConvertTokensToIDs returns -1 for strings that do not encode to exactly one id.
func (t *Tiktoken) ConvertTokensToIDs(tokens []string) []int {
	out := make([]int, len(tokens))
	for i, tok := range tokens {
		ids := t.model.Encode(tok, nil, nil)
		if len(ids) != 1 {
			out[i] = -1
			continue
		}
		out[i] = ids[0]
	}
	return out
}

func (t *Tiktoken) PadTokenID() int { return t.pad }

// Count returns the number of tokens in the text.
func (t *Tiktoken) Count(text string) int {
	return len(t.model.Encode(text, nil, nil))
}
