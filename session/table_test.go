package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/qingcloudhx/mqreg/subscriber"
)

type fakeHandle string

func (f fakeHandle) ID() string { return string(f) }

func TestGetQueueNotFound(t *testing.T) {
	tbl := New()
	_, err := tbl.GetQueue(subscriber.New("", []byte("c1")))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsertAndGetQueue(t *testing.T) {
	tbl := New()
	id := subscriber.New("", []byte("c1"))
	h := fakeHandle("q1")

	tbl.Insert(id, Row{Ref: "s1", Queue: h, Liveness: "tok1"})

	got, err := tbl.GetQueue(id)
	assert.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestBagSemanticsShareOneQueue(t *testing.T) {
	tbl := New()
	id := subscriber.New("", []byte("c1"))
	h := fakeHandle("q1")

	tbl.Insert(id, Row{Ref: "s1", Queue: h, Liveness: "tok1"})
	tbl.Insert(id, Row{Ref: "s2", Queue: h, Liveness: "tok1"})

	assert.Len(t, tbl.Rows(id), 2)
	assert.Equal(t, 2, tbl.Count())
}

func TestRemoveByHandleEvictsAllMatchingRows(t *testing.T) {
	tbl := New()
	id := subscriber.New("", []byte("c1"))
	other := subscriber.New("", []byte("c2"))
	h := fakeHandle("q1")

	tbl.Insert(id, Row{Ref: "s1", Queue: h, Liveness: "tok1"})
	tbl.Insert(id, Row{Ref: "s2", Queue: h, Liveness: "tok1"})
	tbl.Insert(other, Row{Ref: "s3", Queue: fakeHandle("q2"), Liveness: "tok2"})

	emptied := tbl.RemoveByHandle(h, "tok1")
	assert.ElementsMatch(t, []subscriber.ID{id}, emptied)
	assert.False(t, tbl.Has(id))
	assert.True(t, tbl.Has(other))
}

func TestRemoveByHandleIgnoresStaleToken(t *testing.T) {
	tbl := New()
	id := subscriber.New("", []byte("c1"))
	h := fakeHandle("q1")

	tbl.Insert(id, Row{Ref: "s1", Queue: h, Liveness: "tok1"})

	// a death notification carrying a stale token (from a since-replaced
	// queue at the same handle value) must not evict the fresh row.
	emptied := tbl.RemoveByHandle(h, "stale-token")
	assert.Empty(t, emptied)
	assert.True(t, tbl.Has(id))
}
