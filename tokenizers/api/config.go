package api

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/gomlx/go-bpe/internal/files"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	// ClassBPE is the TokenizerClass of tokenizers trained by this library.
	ClassBPE = "BPETokenizer"

	// ClassSentencePiece is the TokenizerClass of SentencePiece models.
	ClassSentencePiece = "SentencePieceTokenizer"

	// ConfigFileName is the name of the configuration file inside a tokenizer directory.
	ConfigFileName = "tokenizer_config.json"

	// DefaultVocabFileName is used when Config.VocabFile is not set.
	DefaultVocabFileName = "vocab.json"

	// DefaultUnkToken is the symbol reserved for unknown text.
	DefaultUnkToken = "<|UNK|>"

	// DefaultEncodeCacheSize is the number of word encodings cached by word-level tokenizers.
	DefaultEncodeCacheSize = 4096
)

// Values accepted by Config.TruncationStrategy.
const (
	DoNotTruncate = "do_not_truncate"
	Truncate      = "truncate"
)

// Values accepted by Config.TruncationSide.
const (
	TruncateRight = "right"
	TruncateLeft  = "left"
)

// Config struct holds the tokenizer_config.json contents: how a vocabulary is trained and how it's
// used to encode text.
//
// The extra field ConfigFile holds the path to the file with the full config, if it was read from disk.
type Config struct {
	ConfigFile     string `json:"-" yaml:"-"`
	TokenizerClass string `json:"tokenizer_class" yaml:"tokenizer_class"`

	// VocabFile is relative to the directory of ConfigFile, unless it's an absolute path.
	VocabFile string `json:"vocab_file,omitempty" yaml:"vocab_file"`

	VocabSize           int    `json:"vocab_size,omitempty" yaml:"vocab_size"`
	WordLevel           bool   `json:"word_level" yaml:"word_level"`
	PreTokenizerPattern string `json:"pre_tokenizer_pattern,omitempty" yaml:"pre_tokenizer_pattern"`
	Normalization       string `json:"normalization,omitempty" yaml:"normalization"`

	UnkToken                string   `json:"unk_token" yaml:"unk_token"`
	PadToken                string   `json:"pad_token,omitempty" yaml:"pad_token"`
	BosToken                string   `json:"bos_token,omitempty" yaml:"bos_token"`
	EosToken                string   `json:"eos_token,omitempty" yaml:"eos_token"`
	AdditionalSpecialTokens []string `json:"additional_special_tokens,omitempty" yaml:"additional_special_tokens"`

	AddBosToken bool `json:"add_bos_token" yaml:"add_bos_token"`
	AddEosToken bool `json:"add_eos_token" yaml:"add_eos_token"`

	TruncationSide     string `json:"truncation_side,omitempty" yaml:"truncation_side"`
	TruncationStrategy string `json:"truncation_strategy,omitempty" yaml:"truncation_strategy"`

	// EncodeCacheSize is the number of word encodings to keep in an LRU cache. Set to a negative value to disable.
	EncodeCacheSize int `json:"encode_cache_size,omitempty" yaml:"encode_cache_size"`
}

// DefaultConfig returns a character-level BPE configuration with only the unknown token reserved.
func DefaultConfig() *Config {
	return &Config{
		TokenizerClass:     ClassBPE,
		VocabFile:          DefaultVocabFileName,
		UnkToken:           DefaultUnkToken,
		TruncationSide:     TruncateRight,
		TruncationStrategy: DoNotTruncate,
		EncodeCacheSize:    DefaultEncodeCacheSize,
	}
}

// SpecialTokens returns the configured special symbols in the order they are reserved in a vocabulary:
// unknown, pad, beginning and end of sentence, followed by the additional ones. Empty and repeated
// entries are skipped.
func (c *Config) SpecialTokens() []string {
	candidates := append([]string{c.UnkToken, c.PadToken, c.BosToken, c.EosToken}, c.AdditionalSpecialTokens...)
	seen := make(map[string]bool, len(candidates))
	tokens := make([]string, 0, len(candidates))
	for _, token := range candidates {
		if token == "" || seen[token] {
			continue
		}
		seen[token] = true
		tokens = append(tokens, token)
	}
	return tokens
}

// VocabPath returns the path to the vocabulary file, resolved relative to the config file directory.
func (c *Config) VocabPath() string {
	vocabFile := c.VocabFile
	if vocabFile == "" {
		vocabFile = DefaultVocabFileName
	}
	if filepath.IsAbs(vocabFile) || c.ConfigFile == "" {
		return vocabFile
	}
	return filepath.Join(filepath.Dir(c.ConfigFile), vocabFile)
}

// Validate checks the values that have a closed set of options, and fills in defaults for the empty ones.
func (c *Config) Validate() error {
	if c.TokenizerClass == "" {
		c.TokenizerClass = ClassBPE
	}
	if c.UnkToken == "" {
		c.UnkToken = DefaultUnkToken
	}
	switch c.TruncationStrategy {
	case "":
		c.TruncationStrategy = DoNotTruncate
	case DoNotTruncate, Truncate:
	default:
		return errors.Wrapf(ErrInvalidConfig, "truncation_strategy %q, valid values are %q or %q",
			c.TruncationStrategy, DoNotTruncate, Truncate)
	}
	switch c.TruncationSide {
	case "":
		c.TruncationSide = TruncateRight
	case TruncateRight, TruncateLeft:
	default:
		return errors.Wrapf(ErrInvalidConfig, "truncation_side %q, valid values are %q or %q",
			c.TruncationSide, TruncateRight, TruncateLeft)
	}
	switch strings.ToUpper(c.Normalization) {
	case "", "NFC", "NFD", "NFKC", "NFKD":
	default:
		return errors.Wrapf(ErrInvalidConfig, "normalization %q, valid values are NFC, NFD, NFKC or NFKD",
			c.Normalization)
	}
	return nil
}

// ParseConfigFile parses the given file (holding a tokenizer_config.json file) into a Config structure.
//
// Files ending in ".yaml" or ".yml" are parsed as YAML, everything else as JSON.
func ParseConfigFile(filePath string) (*Config, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read file %q", filePath)
	}
	var config *Config
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".yaml", ".yml":
		config, err = ParseConfigYAML(content)
	default:
		config, err = ParseConfigContent(content)
	}
	if err != nil {
		return nil, errors.WithMessagef(err, "read from file %q", filePath)
	}
	config.ConfigFile = filePath
	return config, nil
}

// ParseConfigContent parses the given json content (of a tokenizer_config.json file) into a Config structure.
// Fields missing from the content take the values of DefaultConfig.
func ParseConfigContent(jsonContent []byte) (*Config, error) {
	config := DefaultConfig()
	err := json.Unmarshal(jsonContent, config)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse tokenizer_config json content")
	}
	if err = config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ParseConfigYAML is the YAML version of ParseConfigContent, it accepts the same keys.
func ParseConfigYAML(yamlContent []byte) (*Config, error) {
	config := DefaultConfig()
	err := yaml.Unmarshal(yamlContent, config)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse tokenizer_config yaml content")
	}
	if err = config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// WriteConfigFile writes the config as indented JSON to filePath, creating its directory if needed.
func WriteConfigFile(config *Config, filePath string) error {
	content, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "failed to serialize tokenizer config")
	}
	content = append(content, '\n')
	if err = files.WriteFileAtomic(filePath, content); err != nil {
		return errors.Wrapf(err, "failed to write tokenizer config to %q", filePath)
	}
	return nil
}
