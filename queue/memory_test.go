package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/qingcloudhx/mqreg/subscriber"
)

func TestStartQueueCreatesDistinctHandles(t *testing.T) {
	sup := NewMemorySupervisor(10)
	id := subscriber.New("", []byte("c1"))

	h1, err := sup.StartQueue(id)
	assert.NoError(t, err)
	h2, err := sup.StartQueue(id)
	assert.NoError(t, err)

	assert.NotEqual(t, h1.ID(), h2.ID())
}

func TestEnqueueRespectsBound(t *testing.T) {
	sup := NewMemorySupervisor(1)
	h, err := sup.StartQueue(subscriber.New("", []byte("c1")))
	assert.NoError(t, err)

	assert.NoError(t, h.Enqueue(Message{RoutingKey: "a"}))
	assert.ErrorIs(t, h.Enqueue(Message{RoutingKey: "b"}), ErrQueueFull)
}

func TestMigrateTransfersSessionsAndMessages(t *testing.T) {
	sup := NewMemorySupervisor(10)
	id := subscriber.New("", []byte("c1"))

	src, err := sup.StartQueue(id)
	assert.NoError(t, err)
	dst, err := sup.StartQueue(id)
	assert.NoError(t, err)

	assert.NoError(t, src.AddSession("ref-1", false, true))
	assert.NoError(t, src.Enqueue(Message{RoutingKey: "a"}))
	assert.NoError(t, src.Enqueue(Message{RoutingKey: "b"}))

	assert.NoError(t, src.Migrate(dst))

	assert.ElementsMatch(t, []any{"ref-1"}, dst.GetSessions())
	assert.Equal(t, 2, dst.Status().QueuedCount)

	select {
	case <-src.Dying():
	case <-time.After(time.Second):
		t.Fatal("source queue did not terminate after migrate")
	}
}

func TestDeathNotifiesDying(t *testing.T) {
	sup := NewMemorySupervisor(10)
	h, err := sup.StartQueue(subscriber.New("", []byte("c1")))
	assert.NoError(t, err)

	mh := h.(*memQueue)
	mh.Kill()

	select {
	case <-h.Dying():
	case <-time.After(time.Second):
		t.Fatal("queue did not report dying after Kill")
	}
}
