// Package sentencepiece implements an api.Tokenizer based on a SentencePiece model file, so pre-trained
// SentencePiece models can be used interchangeably with the BPE tokenizers trained by this library.
package sentencepiece

import (
	esentencepiece "github.com/eliben/go-sentencepiece"
	"github.com/gomlx/go-bpe/internal/files"
	"github.com/gomlx/go-bpe/tokenizers/api"
	"github.com/pkg/errors"
)

// New creates a SentencePiece tokenizer from the model file config.VocabPath(), which must be a
// SentencePiece Model proto.
//
// It implements a tokenizers.TokenizerConstructor function signature.
func New(config *api.Config) (api.Tokenizer, error) {
	modelPath := config.VocabPath()
	if !files.Exists(modelPath) {
		return nil, errors.Errorf("SentencePiece model file %q not found", modelPath)
	}
	tokenizer, err := NewFromPath(modelPath)
	if err != nil {
		return nil, err
	}
	return tokenizer, nil
}

// NewFromPath creates a SentencePiece tokenizer from the model file in modelPath.
func NewFromPath(modelPath string) (*Tokenizer, error) {
	modelPath, err := files.ReplaceTildeInDir(modelPath)
	if err != nil {
		return nil, err
	}
	proc, err := esentencepiece.NewProcessorFromPath(modelPath)
	if err != nil {
		return nil, errors.Wrapf(err, "can't create sentencepiece tokenizer from %q", modelPath)
	}
	return &Tokenizer{
		Processor: proc,
		Info:      proc.ModelInfo(),
	}, nil
}

// Tokenizer implements api.Tokenizer interface based on SentencePiece tokenizer by Google.
type Tokenizer struct {
	*esentencepiece.Processor
	Info *esentencepiece.ModelInfo
}

// Compile time assert that sentencepiece.Tokenizer implements api.Tokenizer interface.
var _ api.Tokenizer = &Tokenizer{}

// Encode returns the text encoded into a sequence of ids.
func (p *Tokenizer) Encode(text string) []int {
	tokens := p.Processor.Encode(text)
	ids := make([]int, len(tokens))
	for ii, token := range tokens {
		ids[ii] = token.ID
	}
	return ids
}

// Decode returns the text from a sequence of ids.
// Ids outside the model vocabulary return an error wrapping api.ErrUnknownTokenID.
func (p *Tokenizer) Decode(ids []int) (string, error) {
	for ii, id := range ids {
		if id < 0 || id >= p.Info.VocabularySize {
			return "", errors.Wrapf(api.ErrUnknownTokenID, "id %d at position %d (vocabulary has %d pieces)",
				id, ii, p.Info.VocabularySize)
		}
	}
	return p.Processor.Decode(ids), nil
}

// SpecialTokenID returns the token for the given symbol, or an error if not known.
func (p *Tokenizer) SpecialTokenID(token api.SpecialToken) (int, error) {
	switch token {
	case api.TokUnknown:
		return p.Info.UnknownID, nil
	case api.TokPad:
		return p.Info.PadID, nil
	case api.TokBeginningOfSentence:
		return p.Info.BeginningOfSentenceID, nil
	case api.TokEndOfSentence:
		return p.Info.EndOfSentenceID, nil
	}
	return 0, errors.Errorf("unknown special token: %s (%d)", token, token)
}
