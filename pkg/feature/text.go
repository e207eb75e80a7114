package feature

import (
	"fmt"
	"strings"

	"github.com/lab/mwp-encoder/pkg/schema"
	"github.com/lab/mwp-encoder/pkg/tokenizer"
)

// DefaultMarker replaces every quantity placeholder before tokenization.
const DefaultMarker = "<quant>"

// DefaultMarkerPattern is how a BERT WordPiece vocabulary splits DefaultMarker.
var DefaultMarkerPattern = []string{"<", "q", "##uan", "##t", ">"}

// DefaultNewToken is the dedicated token used when marker occurrences are collapsed.
const DefaultNewToken = "<NUM>"

var placeholderPrefix = map[schema.Format]string{
	schema.FormatMath23k: "temp_",
	schema.FormatComplex: "@ ",
}

// Preprocess replaces the quantity placeholders of format with marker and re-joins the
// words: the marker is padded with spaces, commas are followed by a space and every other
// word is glued to its neighbour.
func Preprocess(text string, format schema.Format, marker string) string {
	if marker == "" {
		marker = DefaultMarker
	}
	prefix, ok := placeholderPrefix[format]
	if !ok {
		prefix = placeholderPrefix[schema.FormatMath23k]
	}
	for k := 'a'; k <= 'z'; k++ {
		text = strings.ReplaceAll(text, prefix+string(k), " "+marker+" ")
	}

	var b strings.Builder
	for _, word := range strings.Fields(text) {
		switch word {
		case marker:
			b.WriteString(" " + marker + " ")
		case ",", "，":
			b.WriteString(word + " ")
		default:
			b.WriteString(word)
		}
	}
	return b.String()
}

// FindSpans returns the first and last position of every occurrence of pattern.
func FindSpans(tokens, pattern []string) (starts, ends []int) {
	if len(pattern) == 0 {
		return nil, nil
	}
	for k := 0; k+len(pattern) <= len(tokens); k++ {
		if matchAt(tokens, pattern, k) {
			starts = append(starts, k)
			ends = append(ends, k+len(pattern)-1)
			k += len(pattern) - 1
		}
	}
	return starts, ends
}

// CollapseSpans replaces every occurrence of pattern with newToken. Each span starts and
// ends at the position of its new token.
func CollapseSpans(tokens, pattern []string, newToken string) (out []string, starts, ends []int) {
	out = make([]string, 0, len(tokens))
	for k := 0; k < len(tokens); {
		if len(pattern) > 0 && k+len(pattern) <= len(tokens) && matchAt(tokens, pattern, k) {
			starts = append(starts, len(out))
			ends = append(ends, len(out))
			out = append(out, newToken)
			k += len(pattern)
			continue
		}
		out = append(out, tokens[k])
		k++
	}
	return out, starts, ends
}

func matchAt(tokens, pattern []string, k int) bool {
	for i, p := range pattern {
		if tokens[k+i] != p {
			return false
		}
	}
	return true
}

// DeriveMarkerPattern encodes marker with tok and strips whatever the tokenizer adds to
// every input, such as [CLS] and [SEP].
func DeriveMarkerPattern(tok tokenizer.Tokenizer, marker string) ([]string, error) {
	empty, err := tok.EncodePlus("")
	if err != nil {
		return nil, err
	}
	enc, err := tok.EncodePlus(" " + marker + " ")
	if err != nil {
		return nil, err
	}
	e, m := empty.InputIDs, enc.InputIDs
	prefix := 0
	for prefix < len(e) && prefix < len(m) && e[prefix] == m[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(e)-prefix && suffix < len(m)-prefix &&
		e[len(e)-1-suffix] == m[len(m)-1-suffix] {
		suffix++
	}
	ids := m[prefix : len(m)-suffix]
	if len(ids) == 0 {
		return nil, fmt.Errorf("marker %q encodes to no tokens", marker)
	}
	return tok.ConvertIDsToTokens(ids), nil
}
