package bpe

import (
	"strings"
	"unicode"

	"github.com/dlclark/regexp2"
	"github.com/gomlx/go-bpe/tokenizers/api"
	"github.com/pkg/errors"
	"golang.org/x/text/unicode/norm"
)

// GPT4Pattern is a word splitting pattern in the style of GPT-4 tokenizers: contractions, letter runs
// (with an optional leading symbol), numbers of up to 3 digits, punctuation runs and whitespace.
//
// regexp2 doesn't support possessive quantifiers, so atomic groups are used instead.
const GPT4Pattern = `'(?i:[sdmt]|ll|ve|re)|(?>[^\r\n\p{L}\p{N}]?)\p{L}+|\p{N}{1,3}| ?(?>[^\s\p{L}\p{N}]+)[\r\n]*|\s*[\r\n]|\s+(?!\S)|\s+`

// Piece is a fragment of text produced by a PreTokenizer.
// Only mergeable pieces are used as training units; the others (e.g. whitespace between words)
// are still encoded, but no merged symbol is learned from them.
type Piece struct {
	Text      string
	Mergeable bool
}

// PreTokenizer splits text into pieces for word-level training and encoding.
//
// The concatenation of the pieces' Text must be equal to the input text, so encoding stays lossless.
type PreTokenizer interface {
	Split(text string) []Piece
}

// WhitespacePreTokenizer splits text in runs of non-space characters (words, mergeable) and runs of
// white space (not mergeable).
type WhitespacePreTokenizer struct{}

var _ PreTokenizer = WhitespacePreTokenizer{}

// Split implements PreTokenizer.
func (WhitespacePreTokenizer) Split(text string) []Piece {
	var pieces []Piece
	start := 0
	inSpace := false
	for pos, r := range text {
		isSpace := unicode.IsSpace(r)
		if pos > start && isSpace != inSpace {
			pieces = append(pieces, Piece{Text: text[start:pos], Mergeable: !inSpace})
			start = pos
		}
		inSpace = isSpace
	}
	if start < len(text) {
		pieces = append(pieces, Piece{Text: text[start:], Mergeable: !inSpace})
	}
	return pieces
}

// PatternPreTokenizer splits text with a regular expression (regexp2 syntax): every match is a
// mergeable piece, and any text in between matches becomes a non-mergeable piece.
type PatternPreTokenizer struct {
	re *regexp2.Regexp
}

var _ PreTokenizer = &PatternPreTokenizer{}

// NewPatternPreTokenizer compiles pattern, see GPT4Pattern for an example.
func NewPatternPreTokenizer(pattern string) (*PatternPreTokenizer, error) {
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return nil, errors.Wrapf(api.ErrInvalidConfig, "pre-tokenizer pattern %q: %v", pattern, err)
	}
	return &PatternPreTokenizer{re: re}, nil
}

// Split implements PreTokenizer.
func (p *PatternPreTokenizer) Split(text string) []Piece {
	if text == "" {
		return nil
	}
	// regexp2 reports match positions in runes.
	runes := []rune(text)
	var pieces []Piece
	last := 0
	match, err := p.re.FindStringMatch(text)
	for match != nil && err == nil {
		if match.Length == 0 {
			match, err = p.re.FindNextMatch(match)
			continue
		}
		if match.Index > last {
			pieces = append(pieces, Piece{Text: string(runes[last:match.Index])})
		}
		pieces = append(pieces, Piece{Text: string(runes[match.Index : match.Index+match.Length]), Mergeable: true})
		last = match.Index + match.Length
		match, err = p.re.FindNextMatch(match)
	}
	if last < len(runes) {
		pieces = append(pieces, Piece{Text: string(runes[last:])})
	}
	return pieces
}

// newPreTokenizer returns the PreTokenizer configured, or nil if config is not word-level.
func newPreTokenizer(config *api.Config) (PreTokenizer, error) {
	if !config.WordLevel {
		return nil, nil
	}
	if config.PreTokenizerPattern == "" {
		return WhitespacePreTokenizer{}, nil
	}
	return NewPatternPreTokenizer(config.PreTokenizerPattern)
}

// normalizer applies Unicode normalization, the zero value does nothing.
type normalizer struct {
	form    norm.Form
	enabled bool
}

func newNormalizer(name string) (normalizer, error) {
	switch strings.ToUpper(name) {
	case "":
		return normalizer{}, nil
	case "NFC":
		return normalizer{form: norm.NFC, enabled: true}, nil
	case "NFD":
		return normalizer{form: norm.NFD, enabled: true}, nil
	case "NFKC":
		return normalizer{form: norm.NFKC, enabled: true}, nil
	case "NFKD":
		return normalizer{form: norm.NFKD, enabled: true}, nil
	}
	return normalizer{}, errors.Wrapf(api.ErrInvalidConfig, "unknown normalization form %q", name)
}

func (n normalizer) apply(text string) string {
	if !n.enabled || n.form.IsNormalString(text) {
		return text
	}
	return n.form.String(text)
}
