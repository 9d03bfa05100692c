package bpe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/go-bpe/tokenizers/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVocabulary(t *testing.T) {
	vocab, err := NewVocabulary([]string{"<|UNK|>", "a", "b", "ab"})
	require.NoError(t, err)
	assert.Equal(t, 4, vocab.Len())
	for id, symbol := range []string{"<|UNK|>", "a", "b", "ab"} {
		gotID, found := vocab.ID(symbol)
		assert.True(t, found)
		assert.Equal(t, id, gotID)
		gotSymbol, found := vocab.Symbol(id)
		assert.True(t, found)
		assert.Equal(t, symbol, gotSymbol)
	}
	_, found := vocab.ID("c")
	assert.False(t, found)
	for _, id := range []int{-1, 4, 100} {
		_, found = vocab.Symbol(id)
		assert.False(t, found, "Symbol(%d)", id)
	}

	// Symbols returns a copy.
	symbols := vocab.Symbols()
	symbols[0] = "changed"
	assert.Equal(t, "<|UNK|>", vocab.Symbols()[0])

	_, err = NewVocabulary([]string{"a", "b", "a"})
	assert.ErrorIs(t, err, ErrMalformedVocabulary)
	_, err = NewVocabulary([]string{"a", ""})
	assert.ErrorIs(t, err, ErrMalformedVocabulary)
}

func TestVocabularyMarshalJSON(t *testing.T) {
	vocab, err := NewVocabulary([]string{"<|UNK|>", "a", "\"q\"", " "})
	require.NoError(t, err)
	content, err := vocab.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"<|UNK|>\": 0,\n  \"a\": 1,\n  \"\\\"q\\\"\": 2,\n  \" \": 3\n}", string(content))

	empty, err := NewVocabulary(nil)
	require.NoError(t, err)
	content, err = empty.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "{}", string(content))
}

func TestVocabularySaveAndLoad(t *testing.T) {
	vocab, err := Train(testCorpus, 70, false)
	require.NoError(t, err)
	filePath := filepath.Join(t.TempDir(), "trained_vocab", "vocab70.json")
	require.NoError(t, vocab.Save(filePath))

	loaded, err := LoadVocabulary(filePath)
	require.NoError(t, err)
	assert.Equal(t, vocab.Symbols(), loaded.Symbols())

	// Loaded vocabularies encode the same as the trained ones.
	original, err := New(nil, vocab)
	require.NoError(t, err)
	reloaded, err := NewFromFile(nil, filePath)
	require.NoError(t, err)
	for _, text := range testCorpus {
		assert.Equal(t, original.Encode(text), reloaded.Encode(text))
	}

	// Saving again is idempotent.
	filePath2 := filepath.Join(t.TempDir(), "vocab.json")
	require.NoError(t, loaded.Save(filePath2))
	content1, err := os.ReadFile(filePath)
	require.NoError(t, err)
	content2, err := os.ReadFile(filePath2)
	require.NoError(t, err)
	assert.Equal(t, string(content1), string(content2))
}

func TestLoadVocabularyErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadVocabulary(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NotErrorIs(t, err, ErrMalformedVocabulary)

	for ii, content := range []string{
		"",
		"not json",
		"null",
		"{}",
		`["a", "b"]`,
		`{"a": 0, "b": 0}`,
		`{"a": 0, "b": 2}`,
		`{"a": -1}`,
		`{"a": 0.5}`,
		`{"": 0}`,
		`{"a": 0`,
	} {
		filePath := filepath.Join(dir, "vocab.json")
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0644))
		_, err = LoadVocabulary(filePath)
		require.Error(t, err, "case #%d: %q", ii, content)
		assert.ErrorIs(t, err, ErrMalformedVocabulary, "case #%d: %q", ii, content)
	}
}

func TestNewFromFileDefaultsToConfigVocabPath(t *testing.T) {
	dir := t.TempDir()
	vocab, err := NewVocabulary([]string{api.DefaultUnkToken, "x", "y"})
	require.NoError(t, err)
	require.NoError(t, vocab.Save(filepath.Join(dir, "custom.json")))

	config := api.DefaultConfig()
	config.ConfigFile = filepath.Join(dir, api.ConfigFileName)
	config.VocabFile = "custom.json"
	tokenizer, err := NewFromFile(config, "")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, tokenizer.Encode("xy"))
}
