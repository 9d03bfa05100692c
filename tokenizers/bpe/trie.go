package bpe

import "unicode/utf8"

// trie is a prefix tree over the runes of the vocabulary symbols, used for longest-match lookups.
type trie struct {
	root trieNode
}

type trieNode struct {
	children map[rune]*trieNode
	id       int // -1 if no symbol ends at this node.
}

func newTrie() *trie {
	return &trie{root: trieNode{id: -1}}
}

func (t *trie) insert(symbol string, id int) {
	node := &t.root
	for _, r := range symbol {
		child := node.children[r]
		if child == nil {
			if node.children == nil {
				node.children = make(map[rune]*trieNode)
			}
			child = &trieNode{id: -1}
			node.children[r] = child
		}
		node = child
	}
	node.id = id
}

// longestMatch returns the id of the longest symbol that is a prefix of text, and its length in bytes.
// If no symbol matches, it returns (-1, 0).
func (t *trie) longestMatch(text string) (id, length int) {
	id = -1
	node := &t.root
	for pos := 0; pos < len(text); {
		r, width := utf8.DecodeRuneInString(text[pos:])
		node = node.children[r]
		if node == nil {
			break
		}
		pos += width
		if node.id >= 0 {
			id, length = node.id, pos
		}
	}
	return
}
