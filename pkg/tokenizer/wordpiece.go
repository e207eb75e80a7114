package tokenizer

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gomlx/go-huggingface/tokenizers/hftokenizer"
)

const (
	UnkToken = "[UNK]"
	ClsToken = "[CLS]"
	SepToken = "[SEP]"
	PadToken = "[PAD]"

	continuationPrefix   = "##"
	maxInputCharsPerWord = 100
)

// WordPiece wraps a HuggingFace tokenizer.json model. The model handles normalization,
// pre-tokenization and sub-word splitting; WordPiece frames every encoding in
// [CLS] ... [SEP], isolates CJK characters and matches added tokens verbatim before the model
// sees the text. AddTokens must not run concurrently with encoding.
type WordPiece struct {
	hf   *hftokenizer.Tokenizer
	size int

	mu         sync.RWMutex
	added      map[string]int
	addedByID  map[int]string
	addedOrder []string // longest first

	unk, cls, sep, pad int
}

// NewWordPiece builds a tokenizer from tokens in id order, as listed in a BERT vocab.txt.
func NewWordPiece(tokens []string, lowercase bool) (*WordPiece, error) {
	vocab := make(map[string]int, len(tokens))
	for id, tok := range tokens {
		if _, dup := vocab[tok]; !dup {
			vocab[tok] = id
		}
	}
	content, err := json.Marshal(bertTokenizerJSON(vocab, lowercase))
	if err != nil {
		return nil, fmt.Errorf("failed to encode vocabulary: %w", err)
	}
	return newWordPiece(content, len(tokens))
}

// bertTokenizerJSON describes the bert-base tokenizer.json pipeline over vocab.
func bertTokenizerJSON(vocab map[string]int, lowercase bool) map[string]interface{} {
	normalizer := map[string]interface{}{"type": "BertNormalizer", "lowercase": false}
	if lowercase {
		normalizer = map[string]interface{}{
			"type": "Sequence",
			"normalizers": []map[string]interface{}{
				{"type": "BertNormalizer", "lowercase": true},
				{"type": "StripAccents"},
			},
		}
	}
	return map[string]interface{}{
		"normalizer":    normalizer,
		"pre_tokenizer": map[string]interface{}{"type": "BertPreTokenizer"},
		"model": map[string]interface{}{
			"type":                      "WordPiece",
			"vocab":                     vocab,
			"unk_token":                 UnkToken,
			"continuing_subword_prefix": continuationPrefix,
			"max_input_chars_per_word":  maxInputCharsPerWord,
		},
	}
}

func newWordPiece(content []byte, size int) (*WordPiece, error) {
	hf, err := hftokenizer.NewFromContent(nil, content)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}
	if size <= 0 {
		size = hf.VocabSize()
	}
	wp := &WordPiece{
		hf:        hf,
		size:      size,
		added:     make(map[string]int),
		addedByID: make(map[int]string),
	}
	for _, s := range []struct {
		tok string
		dst *int
	}{{UnkToken, &wp.unk}, {ClsToken, &wp.cls}, {SepToken, &wp.sep}} {
		id, ok := hf.TokenToID(s.tok)
		if !ok {
			return nil, fmt.Errorf("vocabulary lacks %s", s.tok)
		}
		*s.dst = id
	}
	if id, ok := hf.TokenToID(PadToken); ok {
		wp.pad = id
	}
	return wp, nil
}

// LoadWordPiece reads a vocab.txt file (one token per line, id = line number) or a
// HuggingFace tokenizer.json file. lowercase only applies to vocab.txt; a tokenizer.json
// carries its own normalizer.
func LoadWordPiece(path string, lowercase bool) (*WordPiece, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return loadTokenizerJSON(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vocabulary: %w", err)
	}
	defer f.Close()

	var tokens []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		tokens = append(tokens, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vocabulary: %w", err)
	}
	return NewWordPiece(tokens, lowercase)
}

// addedTokensJSON is the part of tokenizer.json the model resolves only after
// pre-tokenization, too late for tokens containing punctuation.
type addedTokensJSON struct {
	AddedTokens []struct {
		ID      int    `json:"id"`
		Content string `json:"content"`
		Special bool   `json:"special"`
	} `json:"added_tokens"`
}

func loadTokenizerJSON(path string) (*WordPiece, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tokenizer: %w", err)
	}
	var at addedTokensJSON
	if err := json.Unmarshal(content, &at); err != nil {
		return nil, fmt.Errorf("failed to parse tokenizer: %w", err)
	}
	wp, err := newWordPiece(content, 0)
	if err != nil {
		return nil, err
	}
	for _, t := range at.AddedTokens {
		if t.Special || t.Content == "" {
			continue
		}
		wp.added[t.Content] = t.ID
		wp.addedByID[t.ID] = t.Content
		if t.ID >= wp.size {
			wp.size = t.ID + 1
		}
	}
	wp.sortAdded()
	return wp, nil
}

// AddTokens registers tokens with new ids after the vocabulary. They are matched verbatim in
// the input before any other splitting.
func (wp *WordPiece) AddTokens(tokens []string) int {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	var n int
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		if _, ok := wp.added[tok]; ok {
			continue
		}
		id, known := wp.hf.TokenToID(tok)
		if !known {
			id = wp.size
			wp.size++
			n++
		}
		wp.added[tok] = id
		wp.addedByID[id] = tok
	}
	wp.sortAdded()
	return n
}

func (wp *WordPiece) sortAdded() {
	order := make([]string, 0, len(wp.added))
	for tok := range wp.added {
		order = append(order, tok)
	}
	sort.Slice(order, func(i, j int) bool {
		if len(order[i]) != len(order[j]) {
			return len(order[i]) > len(order[j])
		}
		return order[i] < order[j]
	})
	wp.addedOrder = order
}

func (wp *WordPiece) VocabSize() int {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	return wp.size
}

func (wp *WordPiece) PadTokenID() int { return wp.pad }

func (wp *WordPiece) EncodePlus(text string) (Encoding, error) {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	ids := []int{wp.cls}
	for _, seg := range wp.splitAdded(text) {
		if seg.added {
			ids = append(ids, wp.added[seg.text])
			continue
		}
		ids = append(ids, wp.hf.Encode(isolateCJK(seg.text))...)
	}
	ids = append(ids, wp.sep)
	return Encoding{InputIDs: ids, AttentionMask: onesMask(len(ids))}, nil
}

func (wp *WordPiece) ConvertIDsToTokens(ids []int) []string {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	out := make([]string, len(ids))
	for i, id := range ids {
		if tok, ok := wp.addedByID[id]; ok {
			out[i] = tok
			continue
		}
		tok, ok := wp.hf.IDToToken(id)
		if !ok || tok == "" {
			tok = UnkToken
		}
		out[i] = tok
	}
	return out
}

func (wp *WordPiece) ConvertTokensToIDs(tokens []string) []int {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	out := make([]int, len(tokens))
	for i, tok := range tokens {
		if id, ok := wp.added[tok]; ok {
			out[i] = id
			continue
		}
		id, ok := wp.hf.TokenToID(tok)
		if !ok {
			id = wp.unk
		}
		out[i] = id
	}
	return out
}

type segment struct {
	text  string
	added bool
}

// splitAdded cuts text around occurrences of added tokens, longest match first.
func (wp *WordPiece) splitAdded(text string) []segment {
	if len(wp.addedOrder) == 0 {
		return []segment{{text: text}}
	}
	var segs []segment
	start := 0
	for i := 0; i < len(text); {
		matched := ""
		for _, tok := range wp.addedOrder {
			if strings.HasPrefix(text[i:], tok) {
				matched = tok
				break
			}
		}
		if matched == "" {
			i++
			continue
		}
		if start < i {
			segs = append(segs, segment{text: text[start:i]})
		}
		segs = append(segs, segment{text: matched, added: true})
		i += len(matched)
		start = i
	}
	if start < len(text) {
		segs = append(segs, segment{text: text[start:]})
	}
	return segs
}

// isolateCJK surrounds every CJK ideograph with spaces so each one is its own word.
func isolateCJK(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if isCJK(r) {
			b.WriteByte(' ')
			b.WriteRune(r)
			b.WriteByte(' ')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isCJK(r rune) bool {
	switch {
	case r >= 0x4E00 && r <= 0x9FFF,
		r >= 0x3400 && r <= 0x4DBF,
		r >= 0x20000 && r <= 0x2A6DF,
		r >= 0x2A700 && r <= 0x2B73F,
		r >= 0x2B740 && r <= 0x2B81F,
		r >= 0x2B820 && r <= 0x2CEAF,
		r >= 0xF900 && r <= 0xFAFF,
		r >= 0x2F800 && r <= 0x2FA1F:
		return true
	}
	return false
}

var (
	_ Tokenizer = (*WordPiece)(nil)
	_ Extender  = (*WordPiece)(nil)
	_ Tokenizer = (*Tiktoken)(nil)
)
