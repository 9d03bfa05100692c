package bpe

import "github.com/pkg/errors"

var (
	// ErrInvalidVocabSize is returned when training is asked for a vocabulary size <= 0.
	ErrInvalidVocabSize = errors.New("vocabulary size must be positive")

	// ErrMalformedVocabulary is returned when a vocabulary file can be read but not parsed, or when
	// its ids are not a dense and unique range.
	ErrMalformedVocabulary = errors.New("malformed vocabulary")
)
