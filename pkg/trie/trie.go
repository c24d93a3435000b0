// Package trie holds the vocabulary trie used to tokenize and validate
// dialect spellings. It stores existence only.
package trie

type node struct {
	children map[rune]*node
	terminal bool
}

type Trie struct {
	root  *node
	count int
}

func New(words ...string) *Trie {
	t := &Trie{root: &node{}}
	for _, w := range words {
		t.Insert(w)
	}
	return t
}

func (t *Trie) Insert(word string) {
	n := t.root
	for _, r := range word {
		child, ok := n.children[r]
		if !ok {
			if n.children == nil {
				n.children = make(map[rune]*node)
			}
			child = &node{}
			n.children[r] = child
		}
		n = child
	}
	if !n.terminal {
		n.terminal = true
		t.count++
	}
}

func (t *Trie) find(s string) *node {
	n := t.root
	for _, r := range s {
		n = n.children[r]
		if n == nil {
			return nil
		}
	}
	return n
}

// ContainsPrefix reports whether prefix is a prefix of at least one inserted
// word. The empty prefix matches only a non-empty trie.
func (t *Trie) ContainsPrefix(prefix string) bool {
	if prefix == "" {
		return t.count > 0
	}
	return t.find(prefix) != nil
}

func (t *Trie) Contains(word string) bool {
	n := t.find(word)
	return n != nil && n.terminal
}

func (t *Trie) Len() int { return t.count }
