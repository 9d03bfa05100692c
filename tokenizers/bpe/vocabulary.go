package bpe

import (
	"bytes"
	"encoding/json"
	"os"
	"strconv"

	"github.com/gomlx/go-bpe/internal/files"
	"github.com/pkg/errors"
)

// Vocabulary is a bijective mapping between symbols (string fragments) and dense integer ids in
// the range [0, Len()).
//
// It owns both directions of the mapping, plus a prefix tree used for greedy longest-match
// encoding. Once built (by a Trainer, NewVocabulary or LoadVocabulary) it is immutable and safe
// for concurrent use.
type Vocabulary struct {
	symbolToID map[string]int
	idToSymbol []string
	matcher    *trie
}

// newVocabularyBuilder returns an empty Vocabulary that can be grown with add, and must be
// finished with finalize before use.
func newVocabularyBuilder() *Vocabulary {
	return &Vocabulary{symbolToID: make(map[string]int)}
}

// add registers symbol with the next sequential id, if it is not registered yet.
func (v *Vocabulary) add(symbol string) (id int, added bool) {
	if id, found := v.symbolToID[symbol]; found {
		return id, false
	}
	id = len(v.idToSymbol)
	v.symbolToID[symbol] = id
	v.idToSymbol = append(v.idToSymbol, symbol)
	return id, true
}

// finalize builds the lookup structures derived from the mapping.
func (v *Vocabulary) finalize() *Vocabulary {
	v.matcher = newTrie()
	for id, symbol := range v.idToSymbol {
		v.matcher.insert(symbol, id)
	}
	return v
}

// NewVocabulary creates a Vocabulary where each symbol gets its position in symbols as id.
//
// It returns an error wrapping ErrMalformedVocabulary if a symbol is empty or repeated.
func NewVocabulary(symbols []string) (*Vocabulary, error) {
	v := newVocabularyBuilder()
	for ii, symbol := range symbols {
		if symbol == "" {
			return nil, errors.Wrapf(ErrMalformedVocabulary, "empty symbol for id %d", ii)
		}
		if previous, found := v.symbolToID[symbol]; found {
			return nil, errors.Wrapf(ErrMalformedVocabulary, "symbol %q repeated with ids %d and %d", symbol, previous, ii)
		}
		v.add(symbol)
	}
	return v.finalize(), nil
}

// Len returns the number of symbols in the vocabulary.
func (v *Vocabulary) Len() int {
	return len(v.idToSymbol)
}

// ID returns the id of the symbol, and whether it is registered.
func (v *Vocabulary) ID(symbol string) (int, bool) {
	id, found := v.symbolToID[symbol]
	return id, found
}

// Symbol returns the symbol for the id, and whether the id is registered.
func (v *Vocabulary) Symbol(id int) (string, bool) {
	if id < 0 || id >= len(v.idToSymbol) {
		return "", false
	}
	return v.idToSymbol[id], true
}

// Symbols returns a copy of all symbols, indexed by their id.
func (v *Vocabulary) Symbols() []string {
	symbols := make([]string, len(v.idToSymbol))
	copy(symbols, v.idToSymbol)
	return symbols
}

// MarshalJSON implements json.Marshaler. The vocabulary is serialized as one JSON object mapping
// symbol to id, with keys written in id order.
func (v *Vocabulary) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	buf.WriteString("{")
	for id, symbol := range v.idToSymbol {
		if id > 0 {
			buf.WriteString(",")
		}
		buf.WriteString("\n  ")
		if err := enc.Encode(symbol); err != nil {
			return nil, errors.Wrapf(err, "failed to serialize symbol %q", symbol)
		}
		buf.Truncate(buf.Len() - 1) // Encode appends a newline.
		buf.WriteString(": ")
		buf.WriteString(strconv.Itoa(id))
	}
	if len(v.idToSymbol) > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("}")
	return buf.Bytes(), nil
}

// ParseVocabulary parses the JSON object (symbol to id) written by Vocabulary.MarshalJSON.
//
// The ids must be dense and unique, and there must be at least one symbol. Otherwise, or if the
// content is not valid JSON, it returns an error wrapping ErrMalformedVocabulary.
func ParseVocabulary(content []byte) (*Vocabulary, error) {
	var mapping map[string]int
	if err := json.Unmarshal(content, &mapping); err != nil {
		return nil, errors.Wrapf(ErrMalformedVocabulary, "invalid json: %v", err)
	}
	if mapping == nil {
		return nil, errors.Wrap(ErrMalformedVocabulary, "expected a json object mapping symbols to ids")
	}
	if len(mapping) == 0 {
		return nil, errors.Wrap(ErrMalformedVocabulary, "empty vocabulary")
	}
	symbols := make([]string, len(mapping))
	seen := make([]bool, len(mapping))
	for symbol, id := range mapping {
		if id < 0 || id >= len(mapping) {
			return nil, errors.Wrapf(ErrMalformedVocabulary, "id %d of symbol %q is out of the range [0, %d)",
				id, symbol, len(mapping))
		}
		if seen[id] {
			return nil, errors.Wrapf(ErrMalformedVocabulary, "id %d used by symbols %q and %q", id, symbols[id], symbol)
		}
		seen[id] = true
		symbols[id] = symbol
	}
	return NewVocabulary(symbols)
}

// LoadVocabulary reads a vocabulary file saved with Vocabulary.Save.
//
// A missing or unreadable file returns the wrapped os error; invalid content returns an error
// wrapping ErrMalformedVocabulary. It never returns an empty vocabulary in place of an error.
func LoadVocabulary(filePath string) (*Vocabulary, error) {
	filePath, err := files.ReplaceTildeInDir(filePath)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read vocabulary file %q", filePath)
	}
	v, err := ParseVocabulary(content)
	if err != nil {
		return nil, errors.WithMessagef(err, "loading vocabulary file %q", filePath)
	}
	return v, nil
}

// Save writes the vocabulary as a JSON object to filePath, creating its directory if needed.
// The file is replaced atomically.
func (v *Vocabulary) Save(filePath string) error {
	filePath, err := files.ReplaceTildeInDir(filePath)
	if err != nil {
		return err
	}
	content, err := v.MarshalJSON()
	if err != nil {
		return err
	}
	content = append(content, '\n')
	if err = files.WriteFileAtomic(filePath, content); err != nil {
		return errors.WithMessagef(err, "saving vocabulary")
	}
	return nil
}
