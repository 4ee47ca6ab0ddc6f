package admission

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGateAdmitsWithinCapacity(t *testing.T) {
	gate := New("subs", 2, time.Hour)

	n := 0
	for i := 0; i < 2; i++ {
		_, err := Do(gate, func() (int, error) {
			n++
			return n, nil
		})
		assert.NoError(t, err)
	}

	assert.Equal(t, 2, n)
}

func TestGateRejectsWhenSaturated(t *testing.T) {
	gate := New("subs", 1, time.Hour)

	_, err := Do(gate, func() (int, error) { return 1, nil })
	assert.NoError(t, err)

	_, err = Do(gate, func() (int, error) { return 1, nil })
	assert.ErrorIs(t, err, ErrOverloaded)
}

func TestGateReleasesOnError(t *testing.T) {
	gate := New("subs", 1, time.Hour)

	boom := errors.New("boom")
	err := DoErr(gate, func() error { return boom })
	assert.ErrorIs(t, err, boom)

	// the token was spent regardless of op's outcome: a second call with an
	// empty bucket is rejected, not admitted again.
	err = DoErr(gate, func() error { return nil })
	assert.ErrorIs(t, err, ErrOverloaded)
}

func TestRetrierRetriesOnOverload(t *testing.T) {
	retrier := NewRetrier(time.Millisecond)

	attempts := 0
	err := retrier.Until(func() error {
		attempts++
		if attempts < 3 {
			return ErrOverloaded
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetrierPropagatesOtherErrors(t *testing.T) {
	retrier := NewRetrier(time.Millisecond)

	boom := errors.New("boom")
	err := retrier.Until(func() error { return boom })

	assert.ErrorIs(t, err, boom)
}
