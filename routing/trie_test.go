package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/qingcloudhx/mqreg/subscriber"
)

func TestMatchesWildcards(t *testing.T) {
	assert.True(t, Matches("a/b", "a/b"))
	assert.False(t, Matches("a/b", "a/c"))
	assert.True(t, Matches("a/+/c", "a/x/c"))
	assert.False(t, Matches("a/+/c", "a/x/y/c"))
	assert.True(t, Matches("a/#", "a"))
	assert.True(t, Matches("a/#", "a/b/c"))
	assert.False(t, Matches("a/#", "b/c"))
}

func TestTrieFoldLocalAndRemote(t *testing.T) {
	trie := NewTrie()
	id1 := subscriber.New("", []byte("c1"))
	id2 := subscriber.New("", []byte("c2"))

	trie.Insert("", "a/b", id1, 1, "local")
	trie.Insert("", "a/+", id2, 0, "remote-1")
	trie.Insert("", "a/#", id2, 0, "remote-2")

	var items []Item
	err := trie.Fold("", "a/b", "local", func(it Item) error {
		items = append(items, it)
		return nil
	})
	assert.NoError(t, err)

	var locals, remotes int
	for _, it := range items {
		if it.Local {
			locals++
			assert.Equal(t, id1, it.ID)
		} else {
			remotes++
		}
	}
	assert.Equal(t, 1, locals)
	assert.Equal(t, 2, remotes)
}

func TestTrieRemove(t *testing.T) {
	trie := NewTrie()
	id := subscriber.New("", []byte("c1"))

	trie.Insert("", "a/b", id, 0, "n1")
	trie.Remove("", "a/b", id)

	var count int
	_ = trie.Fold("", "a/b", "n1", func(Item) error {
		count++
		return nil
	})
	assert.Equal(t, 0, count)
}

func TestTrieHashWildcardMatchesEmptyTail(t *testing.T) {
	trie := NewTrie()
	id := subscriber.New("", []byte("c1"))
	trie.Insert("", "sport/#", id, 0, "n1")

	var count int
	_ = trie.Fold("", "sport", "n1", func(Item) error {
		count++
		return nil
	})
	assert.Equal(t, 1, count)
}
