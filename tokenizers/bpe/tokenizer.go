// Package bpe implements a Byte-Pair-Encoding tokenizer: a Trainer that builds a Vocabulary from a corpus
// by iteratively merging the most frequent pair of adjacent symbols, and a Tokenizer that encodes text
// with the Vocabulary using greedy longest-match segmentation, and decodes ids back to text.
package bpe

import (
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gomlx/go-bpe/internal/files"
	"github.com/gomlx/go-bpe/internal/workers"
	"github.com/gomlx/go-bpe/tokenizers/api"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Tokenizer implements api.Tokenizer for a BPE Vocabulary.
//
// It is immutable after creation, and safe for concurrent use.
type Tokenizer struct {
	vocab        *Vocabulary
	config       *api.Config
	preTokenizer PreTokenizer
	normalizer   normalizer

	// Special token ids, -1 if not configured.
	unkID, padID, bosID, eosID int

	// cache of word encodings, only used with word-level tokenizers.
	cache *lru.Cache
}

// Compile time assert that bpe.Tokenizer implements api.Tokenizer interface.
var _ api.Tokenizer = &Tokenizer{}

// New creates a Tokenizer for the vocab. The config must be the one used to train the vocabulary (see
// Trainer.Config), since word splitting, normalization and special tokens must match.
//
// If config is nil, api.DefaultConfig is used.
func New(config *api.Config, vocab *Vocabulary) (*Tokenizer, error) {
	if vocab == nil {
		return nil, errors.New("bpe.New requires a vocabulary")
	}
	if config == nil {
		config = api.DefaultConfig()
	}
	c := *config
	if err := c.Validate(); err != nil {
		return nil, err
	}
	t := &Tokenizer{
		vocab:  vocab,
		config: &c,
		unkID:  -1,
		padID:  -1,
		bosID:  -1,
		eosID:  -1,
	}
	var err error
	if t.preTokenizer, err = newPreTokenizer(&c); err != nil {
		return nil, err
	}
	if t.normalizer, err = newNormalizer(c.Normalization); err != nil {
		return nil, err
	}
	for _, special := range []struct {
		name, token string
		id          *int
	}{
		{"unk_token", c.UnkToken, &t.unkID},
		{"pad_token", c.PadToken, &t.padID},
		{"bos_token", c.BosToken, &t.bosID},
		{"eos_token", c.EosToken, &t.eosID},
	} {
		if special.token == "" {
			continue
		}
		id, found := vocab.ID(special.token)
		if !found {
			return nil, errors.Wrapf(api.ErrInvalidConfig, "%s %q is not in the vocabulary", special.name, special.token)
		}
		*special.id = id
	}
	if c.AddBosToken && t.bosID < 0 {
		return nil, errors.Wrap(api.ErrInvalidConfig, "add_bos_token is set, but no bos_token is configured")
	}
	if c.AddEosToken && t.eosID < 0 {
		return nil, errors.Wrap(api.ErrInvalidConfig, "add_eos_token is set, but no eos_token is configured")
	}
	if c.WordLevel && c.EncodeCacheSize > 0 {
		if t.cache, err = lru.New(c.EncodeCacheSize); err != nil {
			return nil, errors.Wrapf(err, "failed to create encoding cache of size %d", c.EncodeCacheSize)
		}
	}
	return t, nil
}

// NewFromFile creates a Tokenizer from a vocabulary file saved with Vocabulary.Save.
// If vocabPath is empty, config.VocabPath() is used.
func NewFromFile(config *api.Config, vocabPath string) (*Tokenizer, error) {
	if config == nil {
		config = api.DefaultConfig()
	}
	if vocabPath == "" {
		vocabPath = config.VocabPath()
	}
	vocab, err := LoadVocabulary(vocabPath)
	if err != nil {
		return nil, err
	}
	return New(config, vocab)
}

// Vocabulary used by the tokenizer.
func (t *Tokenizer) Vocabulary() *Vocabulary {
	return t.vocab
}

// Config returns a copy of the tokenizer configuration.
func (t *Tokenizer) Config() *api.Config {
	c := *t.config
	return &c
}

// Save writes the vocabulary ("vocab.json", or the configured vocab_file name) and the configuration
// ("tokenizer_config.json") to dir, so the tokenizer can be loaded back with tokenizers.Load.
func (t *Tokenizer) Save(dir string) error {
	dir, err := files.ReplaceTildeInDir(dir)
	if err != nil {
		return err
	}
	c := t.Config()
	c.TokenizerClass = api.ClassBPE
	if c.VocabFile == "" || filepath.IsAbs(c.VocabFile) {
		c.VocabFile = api.DefaultVocabFileName
	}
	if err = t.vocab.Save(filepath.Join(dir, c.VocabFile)); err != nil {
		return err
	}
	return api.WriteConfigFile(c, filepath.Join(dir, api.ConfigFileName))
}

// Encode returns the text encoded into a sequence of ids, using greedy longest-match segmentation:
// at each position the longest symbol of the vocabulary that matches is emitted. Characters that
// match no symbol are encoded as the unknown token, one character at a time.
//
// For word-level tokenizers, text is first split in words, and each word is encoded independently.
//
// Decode(Encode(text)) returns text when every character of text is in the vocabulary and text is
// valid UTF-8. Invalid UTF-8 bytes are read as U+FFFD, so they may match a symbol containing U+FFFD
// and decode to it, or else become the unknown token.
//
// It implements api.Tokenizer.
func (t *Tokenizer) Encode(text string) []int {
	return t.EncodeWithPadding(text, 0)
}

// EncodeWithPadding is like Encode, but if padToLength > 0 and the encoding is shorter, it is padded
// at the end with the pad token (the unknown token if no pad token is configured).
//
// Encodings longer than padToLength are kept as is, unless the truncation_strategy is "truncate", in
// which case they are cut to padToLength on the truncation_side.
func (t *Tokenizer) EncodeWithPadding(text string, padToLength int) []int {
	text = t.normalizer.apply(text)
	ids := make([]int, 0, len(text)/2+3)
	if t.config.AddBosToken {
		ids = append(ids, t.bosID)
	}
	if t.preTokenizer == nil {
		ids = t.appendLongestMatches(ids, text)
	} else {
		for _, piece := range t.preTokenizer.Split(text) {
			ids = t.appendPiece(ids, piece)
		}
	}
	if t.config.AddEosToken {
		ids = append(ids, t.eosID)
	}
	if padToLength <= 0 {
		return ids
	}
	if len(ids) > padToLength {
		if t.config.TruncationStrategy != api.Truncate {
			return ids
		}
		if t.config.TruncationSide == api.TruncateLeft {
			return ids[len(ids)-padToLength:]
		}
		return ids[:padToLength]
	}
	padID := t.padID
	if padID < 0 {
		padID = t.unkID
	}
	for len(ids) < padToLength {
		ids = append(ids, padID)
	}
	return ids
}

// EncodeBatch encodes each of the texts with EncodeWithPadding, using up to parallelism goroutines.
// If parallelism <= 0, all texts are encoded concurrently.
func (t *Tokenizer) EncodeBatch(texts []string, padToLength, parallelism int) [][]int {
	results := make([][]int, len(texts))
	workers.ForEach(len(texts), parallelism, func(ii int) {
		results[ii] = t.EncodeWithPadding(texts[ii], padToLength)
	})
	return results
}

// appendPiece encodes one piece of a pre-tokenized text, using the cache for mergeable pieces.
func (t *Tokenizer) appendPiece(ids []int, piece Piece) []int {
	if t.cache == nil || !piece.Mergeable {
		return t.appendLongestMatches(ids, piece.Text)
	}
	if cached, found := t.cache.Get(piece.Text); found {
		return append(ids, cached.([]int)...)
	}
	start := len(ids)
	ids = t.appendLongestMatches(ids, piece.Text)
	encoded := make([]int, len(ids)-start)
	copy(encoded, ids[start:])
	t.cache.Add(piece.Text, encoded)
	return ids
}

// appendLongestMatches greedily segments text and appends the ids to ids.
func (t *Tokenizer) appendLongestMatches(ids []int, text string) []int {
	for pos := 0; pos < len(text); {
		id, length := t.vocab.matcher.longestMatch(text[pos:])
		if id < 0 {
			if klog.V(3).Enabled() {
				r, _ := utf8.DecodeRuneInString(text[pos:])
				klog.Infof("%q not found in vocabulary, using unknown token", r)
			}
			ids = append(ids, t.unkID)
			_, width := utf8.DecodeRuneInString(text[pos:])
			pos += width
			continue
		}
		ids = append(ids, id)
		pos += length
	}
	return ids
}

// Decode returns the text from a sequence of ids: the concatenation of their symbols.
//
// It returns an error wrapping api.ErrUnknownTokenID if an id is not in the vocabulary.
// It implements api.Tokenizer.
func (t *Tokenizer) Decode(ids []int) (string, error) {
	var sb strings.Builder
	for ii, id := range ids {
		symbol, err := t.symbol(ii, id)
		if err != nil {
			return "", err
		}
		sb.WriteString(symbol)
	}
	return sb.String(), nil
}

// DecodeChunks returns the symbol of each id.
//
// It returns an error wrapping api.ErrUnknownTokenID if an id is not in the vocabulary.
func (t *Tokenizer) DecodeChunks(ids []int) ([]string, error) {
	chunks := make([]string, len(ids))
	for ii, id := range ids {
		symbol, err := t.symbol(ii, id)
		if err != nil {
			return nil, err
		}
		chunks[ii] = symbol
	}
	return chunks, nil
}

func (t *Tokenizer) symbol(position, id int) (string, error) {
	symbol, found := t.vocab.Symbol(id)
	if !found {
		return "", errors.Wrapf(api.ErrUnknownTokenID, "id %d at position %d (vocabulary has %d symbols)",
			id, position, t.vocab.Len())
	}
	return symbol, nil
}

// SpecialTokenID returns the id for the given special token, or an error if not known.
//
// TokPad returns the unknown token id if no pad token is configured, since that is what is used for padding.
func (t *Tokenizer) SpecialTokenID(token api.SpecialToken) (int, error) {
	var id int
	switch token {
	case api.TokUnknown:
		id = t.unkID
	case api.TokPad:
		id = t.padID
		if id < 0 {
			id = t.unkID
		}
	case api.TokBeginningOfSentence:
		id = t.bosID
	case api.TokEndOfSentence:
		id = t.eosID
	default:
		id = -1
	}
	if id < 0 {
		return 0, errors.Errorf("unknown special token: %s (%d)", token, token)
	}
	return id, nil
}
