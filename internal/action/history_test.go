package action

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHistoryPushBack(t *testing.T) {
	h := NewHistory(3)
	h.Push("/a")
	h.Push("/a")
	h.Push("/b")
	h.Push("/c")
	h.Push("/d")

	assert.Equal(t, 3, h.Len())
	p, ok := h.Back()
	assert.True(t, ok)
	assert.Equal(t, "/c", p)
	p, _ = h.Back()
	assert.Equal(t, "/b", p)
	_, ok = h.Back()
	assert.False(t, ok)
}

func TestStatsTop(t *testing.T) {
	s := NewStats()
	s.Record("toggle", time.Time{}, 0, nil)
	s.Record("toggle", time.Time{}, 0, nil)
	s.Record("navigate", time.Time{}, 0, nil)

	top := s.Top(1)
	assert.Len(t, top, 1)
	assert.Equal(t, "toggle", top[0].Name)

	s.Reset()
	assert.Equal(t, uint64(0), s.TotalExecutions())
	assert.Nil(t, s.Action("toggle"))
}
