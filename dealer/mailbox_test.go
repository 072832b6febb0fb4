package dealer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMailboxSingleSlot(t *testing.T) {
	m := newMailbox(1)
	assert.True(t, m.empty())

	assert.False(t, m.put(0))
	assert.True(t, m.put(2), "second put replaces the pending event")

	station, ok := m.take()
	assert.True(t, ok)
	assert.Equal(t, 2, station)

	_, ok = m.take()
	assert.False(t, ok)
	assert.True(t, m.empty())
}

func TestMailboxRing(t *testing.T) {
	m := newMailbox(3)

	assert.False(t, m.put(0))
	assert.False(t, m.put(1))
	assert.False(t, m.put(2))
	assert.True(t, m.put(3), "oldest is dropped when full")

	var got []int
	for !m.empty() {
		station, _ := m.take()
		got = append(got, station)
	}
	assert.Equal(t, []int{1, 2, 3}, got)

	// wraps around after being drained
	m.put(4)
	m.put(5)
	station, _ := m.take()
	assert.Equal(t, 4, station)
}

func TestMailboxMinimumCapacity(t *testing.T) {
	m := newMailbox(0)
	assert.False(t, m.put(1))
	assert.True(t, m.put(2))
}
