package retained

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInsertAndMatchFold(t *testing.T) {
	s := NewMemoryStore()
	assert.NoError(t, s.Insert("", "a/b", []byte("P")))

	var hits []Record
	err := s.MatchFold("", "a/+", func(r Record) error {
		hits = append(hits, r)
		return nil
	})
	assert.NoError(t, err)
	assert.Len(t, hits, 1)
	assert.Equal(t, "P", string(hits[0].Payload))
}

func TestInsertEmptyPayloadDeletes(t *testing.T) {
	s := NewMemoryStore()
	assert.NoError(t, s.Insert("", "a/b", []byte("P")))
	assert.NoError(t, s.Insert("", "a/b", nil))

	n, err := s.Size()
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestDeleteRemovesRecord(t *testing.T) {
	s := NewMemoryStore()
	assert.NoError(t, s.Insert("", "a/b", []byte("P")))
	assert.NoError(t, s.Delete("", "a/b"))

	n, _ := s.Size()
	assert.Equal(t, 0, n)
}

func TestMatchFoldScopedToMountpoint(t *testing.T) {
	s := NewMemoryStore()
	assert.NoError(t, s.Insert("mp1", "a", []byte("P")))
	assert.NoError(t, s.Insert("mp2", "a", []byte("Q")))

	var hits []Record
	err := s.MatchFold("mp1", "a", func(r Record) error {
		hits = append(hits, r)
		return nil
	})
	assert.NoError(t, err)
	assert.Len(t, hits, 1)
	assert.Equal(t, "mp1", hits[0].Mountpoint)
}
