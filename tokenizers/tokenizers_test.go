package tokenizers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/go-bpe/tokenizers/api"
	"github.com/gomlx/go-bpe/tokenizers/bpe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trainTestTokenizer(t *testing.T) *bpe.Tokenizer {
	config := api.DefaultConfig()
	config.VocabSize = 40
	config.WordLevel = true
	config.PadToken = "<|PAD|>"
	trainer, err := bpe.NewTrainer(config)
	require.NoError(t, err)
	vocab, err := trainer.Train([]string{"hello world", "hello there", "wonderful world"})
	require.NoError(t, err)
	tokenizer, err := bpe.New(trainer.Config(), vocab)
	require.NoError(t, err)
	return tokenizer
}

func TestLoadBPE(t *testing.T) {
	trained := trainTestTokenizer(t)
	dir := filepath.Join(t.TempDir(), "my_bpe")
	require.NoError(t, trained.Save(dir))
	assert.FileExists(t, filepath.Join(dir, api.ConfigFileName))
	assert.FileExists(t, filepath.Join(dir, api.DefaultVocabFileName))

	for _, path := range []string{dir, filepath.Join(dir, api.ConfigFileName)} {
		loaded, err := Load(path)
		require.NoError(t, err, "Load(%q)", path)
		require.IsType(t, &bpe.Tokenizer{}, loaded)
		assert.Equal(t, trained.Vocabulary().Symbols(), loaded.(*bpe.Tokenizer).Vocabulary().Symbols())

		for _, text := range []string{"hello world", "wonderful there", "hello  unknown!"} {
			ids := loaded.Encode(text)
			assert.Equal(t, trained.Encode(text), ids)
		}
		ids := loaded.Encode("hello world")
		text, err := loaded.Decode(ids)
		require.NoError(t, err)
		assert.Equal(t, "hello world", text)

		padID, err := loaded.SpecialTokenID(TokPad)
		require.NoError(t, err)
		assert.Equal(t, 1, padID)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir)
	assert.ErrorIs(t, err, os.ErrNotExist)

	configPath := filepath.Join(dir, api.ConfigFileName)
	require.NoError(t, os.WriteFile(configPath, []byte(`{"tokenizer_class": "WordPieceTokenizer"}`), 0644))
	_, err = Load(dir)
	assert.ErrorIs(t, err, api.ErrInvalidConfig)

	// Configuration is fine, but the vocabulary file is missing.
	require.NoError(t, os.WriteFile(configPath, []byte(`{"tokenizer_class": "BPETokenizer"}`), 0644))
	_, err = Load(dir)
	assert.ErrorIs(t, err, os.ErrNotExist)

	// A malformed vocabulary.
	require.NoError(t, os.WriteFile(filepath.Join(dir, api.DefaultVocabFileName), []byte(`{"a": 3}`), 0644))
	_, err = Load(dir)
	assert.ErrorIs(t, err, bpe.ErrMalformedVocabulary)

	// SentencePiece model file missing.
	require.NoError(t, os.WriteFile(configPath,
		[]byte(`{"tokenizer_class": "SentencePieceTokenizer", "vocab_file": "tokenizer.model"}`), 0644))
	_, err = Load(dir)
	assert.Error(t, err)
}

func TestRegisterTokenizerClass(t *testing.T) {
	trained := trainTestTokenizer(t)
	RegisterTokenizerClass("InMemoryTokenizer", func(config *api.Config) (api.Tokenizer, error) {
		return trained, nil
	})
	defer delete(registerOfClasses, "InMemoryTokenizer")

	config := api.DefaultConfig()
	config.TokenizerClass = "InMemoryTokenizer"
	tokenizer, err := New(config)
	require.NoError(t, err)
	assert.Equal(t, trained.Encode("hello"), tokenizer.Encode("hello"))
}
