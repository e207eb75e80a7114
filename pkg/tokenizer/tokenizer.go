// Package tokenizer provides the sub-word tokenizers used to encode problem text.
package tokenizer

import (
	"fmt"
	"strings"
)

// Encoding is the result of EncodePlus.
type Encoding struct {
	InputIDs      []int
	AttentionMask []int
}

// Tokenizer is the contract the feature assembler relies on.
type Tokenizer interface {
	EncodePlus(text string) (Encoding, error)
	ConvertIDsToTokens(ids []int) []string
	ConvertTokensToIDs(tokens []string) []int
	PadTokenID() int
}

// Extender is implemented by tokenizers that can register new whole tokens. It returns the
// number of tokens actually added.
type Extender interface {
	AddTokens(tokens []string) int
}

const (
	KindWordPiece = "wordpiece"
	KindTiktoken  = "tiktoken"
)

// Options selects and configures a tokenizer.
type Options struct {
	Kind       string
	VocabPath  string
	Encoding   string
	Lowercase  bool
	PadTokenID int
}

// New creates the tokenizer described by opts.
func New(opts Options) (Tokenizer, error) {
	switch strings.ToLower(opts.Kind) {
	case "", KindWordPiece:
		if opts.VocabPath == "" {
			return nil, fmt.Errorf("wordpiece tokenizer requires a vocabulary path")
		}
		return LoadWordPiece(opts.VocabPath, opts.Lowercase)
	case KindTiktoken:
		return NewTiktoken(opts.Encoding, opts.PadTokenID)
	}
	return nil, fmt.Errorf("unknown tokenizer kind %q", opts.Kind)
}

func onesMask(n int) []int {
	mask := make([]int, n)
	for i := range mask {
		mask[i] = 1
	}
	return mask
}
