package api

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigContent(t *testing.T) {
	config, err := ParseConfigContent([]byte(`{
		"tokenizer_class": "BPETokenizer",
		"vocab_size": 5000,
		"word_level": true,
		"pad_token": "<|PAD|>",
		"bos_token": "<|SOS|>",
		"eos_token": "<|EOS|>",
		"additional_special_tokens": ["<|SEP|>", "<|PAD|>"],
		"truncation_strategy": "truncate"
	}`))
	require.NoError(t, err)
	assert.Equal(t, ClassBPE, config.TokenizerClass)
	assert.Equal(t, 5000, config.VocabSize)
	assert.True(t, config.WordLevel)
	assert.Equal(t, Truncate, config.TruncationStrategy)

	// Defaults for missing fields.
	assert.Equal(t, DefaultUnkToken, config.UnkToken)
	assert.Equal(t, TruncateRight, config.TruncationSide)
	assert.Equal(t, DefaultEncodeCacheSize, config.EncodeCacheSize)
	assert.Equal(t, DefaultVocabFileName, config.VocabFile)

	assert.Equal(t, []string{DefaultUnkToken, "<|PAD|>", "<|SOS|>", "<|EOS|>", "<|SEP|>"}, config.SpecialTokens())
}

func TestParseConfigInvalid(t *testing.T) {
	for _, content := range []string{
		`{"truncation_strategy": "sometimes"}`,
		`{"truncation_side": "middle"}`,
		`{"normalization": "NFX"}`,
	} {
		_, err := ParseConfigContent([]byte(content))
		assert.ErrorIs(t, err, ErrInvalidConfig, "content: %s", content)
	}
	_, err := ParseConfigContent([]byte(`{"vocab_size": "many"}`))
	assert.Error(t, err)
}

func TestParseConfigFile(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "tokenizer.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
tokenizer_class: BPETokenizer
vocab_file: vocab5000.json
vocab_size: 5000
normalization: nfc
pad_token: "<|PAD|>"
add_eos_token: false
`), 0644))
	config, err := ParseConfigFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, yamlPath, config.ConfigFile)
	assert.Equal(t, 5000, config.VocabSize)
	assert.Equal(t, "<|PAD|>", config.PadToken)
	assert.Equal(t, DefaultUnkToken, config.UnkToken)
	assert.Equal(t, filepath.Join(dir, "vocab5000.json"), config.VocabPath())

	// Write it back as JSON, and read it again.
	jsonPath := filepath.Join(dir, "json", ConfigFileName)
	require.NoError(t, WriteConfigFile(config, jsonPath))
	reloaded, err := ParseConfigFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, jsonPath, reloaded.ConfigFile)
	reloaded.ConfigFile = config.ConfigFile
	assert.Equal(t, config, reloaded)

	_, err = ParseConfigFile(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestVocabPath(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, DefaultVocabFileName, config.VocabPath())
	config.ConfigFile = "/models/bpe/tokenizer_config.json"
	assert.Equal(t, "/models/bpe/vocab.json", config.VocabPath())
	config.VocabFile = "/elsewhere/vocab.json"
	assert.Equal(t, "/elsewhere/vocab.json", config.VocabPath())
}

func TestSpecialTokenString(t *testing.T) {
	assert.Equal(t, "pad", TokPad.String())
	assert.Equal(t, "beginning_of_sentence", TokBeginningOfSentence.String())
	assert.Equal(t, "SpecialToken(42)", SpecialToken(42).String())
}
