package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionStore_Reap(t *testing.T) {
	s := NewSessionStore()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.Put(1, &State{Step: AwaitingURLs})
	now = now.Add(20 * time.Minute)
	s.Put(2, &State{Step: AwaitingURLs})
	now = now.Add(20 * time.Minute)

	removed := s.Reap(now.Add(-30 * time.Minute))
	assert.Equal(t, 1, removed)
	assert.Nil(t, s.Get(1))
	assert.NotNil(t, s.Get(2))

	s.Touch(2)
	assert.Equal(t, 0, s.Reap(now.Add(-time.Minute)))
	assert.True(t, s.Clear(2))
	assert.False(t, s.Clear(2))
	assert.Equal(t, 0, s.Len())
}
