// Package tokenizers loads saved tokenizers through a common interface.
//
// A tokenizer is described by a "tokenizer_config.json" file (see api.Config), whose "tokenizer_class"
// selects the implementation, and whose "vocab_file" points to the vocabulary (or model) file.
package tokenizers

import (
	"path/filepath"

	"github.com/gomlx/go-bpe/internal/files"
	"github.com/gomlx/go-bpe/tokenizers/api"
	"github.com/gomlx/go-bpe/tokenizers/bpe"
	"github.com/gomlx/go-bpe/tokenizers/sentencepiece"
	"github.com/pkg/errors"
)

// Tokenizer interface allows one convert text to "tokens" (integer ids) and back.
//
// It also allows mapping of special tokens: tokens with a common semantic (like padding) but that
// may map to different ids (int) for different tokenizers.
type Tokenizer = api.Tokenizer

// SpecialToken is an enum of commonly used special tokens.
type SpecialToken = api.SpecialToken

const (
	TokBeginningOfSentence = api.TokBeginningOfSentence
	TokEndOfSentence       = api.TokEndOfSentence
	TokUnknown             = api.TokUnknown
	TokPad                 = api.TokPad
	TokMask                = api.TokMask
	TokClassification      = api.TokClassification
	TokSpecialTokensCount  = api.TokSpecialTokensCount
)

// Config struct to hold the tokenizer_config.json contents.
type Config = api.Config

// Load a tokenizer from path, which can be a directory holding a "tokenizer_config.json" file, or the
// path to the configuration file itself (JSON or YAML).
//
// If it fails to load the configuration or the vocabulary, or create a tokenizer, it returns an error.
func Load(path string) (Tokenizer, error) {
	path, err := files.ReplaceTildeInDir(path)
	if err != nil {
		return nil, err
	}
	if files.IsDir(path) {
		path = filepath.Join(path, api.ConfigFileName)
	}
	config, err := api.ParseConfigFile(path)
	if err != nil {
		return nil, err
	}
	return New(config)
}

// New creates a tokenizer for the given configuration, using the constructor registered for its
// TokenizerClass.
func New(config *Config) (Tokenizer, error) {
	constructor, found := registerOfClasses[config.TokenizerClass]
	if !found {
		return nil, errors.Wrapf(api.ErrInvalidConfig, "unknown tokenizer class %q", config.TokenizerClass)
	}
	return constructor(config)
}

// TokenizerConstructor is used by Tokenizer implementations to provide implementations for different
// tokenizer classes.
type TokenizerConstructor func(config *api.Config) (api.Tokenizer, error)

// RegisterTokenizerClass used by Tokenizer implementations.
func RegisterTokenizerClass(name string, constructor TokenizerConstructor) {
	registerOfClasses[name] = constructor
}

var (
	registerOfClasses = make(map[string]TokenizerConstructor)
)

func init() {
	RegisterTokenizerClass(api.ClassBPE, func(config *api.Config) (api.Tokenizer, error) {
		tokenizer, err := bpe.NewFromFile(config, "")
		if err != nil {
			return nil, err
		}
		return tokenizer, nil
	})
	RegisterTokenizerClass(api.ClassSentencePiece, sentencepiece.New)
}
