// Package gobpe only holds the version of the set of tools to train and apply Byte-Pair-Encoding vocabularies.
//
// There are 2 main sub-packages:
//
//   - tokenizers/bpe: to train a BPE vocabulary from a corpus, and to encode/decode text with it.
//   - tokenizers: to load saved tokenizers (BPE or SentencePiece) through a common interface.
package gobpe

// Version of the library.
// Manually kept in sync with project releases.
var Version = "v0.0.0-dev"
