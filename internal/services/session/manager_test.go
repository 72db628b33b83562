package session

import (
	"sync"
	"testing"
	"time"

	"progress-map/internal/services/regions"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreate(t *testing.T) {
	m := NewManager(regions.Default(), time.Hour)

	s, created := m.GetOrCreate("")
	require.True(t, created)
	_, err := uuid.Parse(s.ID)
	require.NoError(t, err)

	again, created := m.GetOrCreate(s.ID)
	assert.False(t, created)
	assert.Same(t, s, again)

	other, created := m.GetOrCreate("not-a-session")
	assert.True(t, created)
	assert.NotEqual(t, s.ID, other.ID)
	assert.Equal(t, 2, m.Len())
}

func TestSessionsAreIsolated(t *testing.T) {
	m := NewManager(regions.Default(), time.Hour)
	a := m.Create()
	b := m.Create()

	require.NoError(t, a.State.Set("MX-CMX", 10))
	v, err := b.State.Get("MX-CMX")
	require.NoError(t, err)
	assert.Equal(t, 50, v)

	a.SetLastReport("R1")
	assert.Equal(t, "R1", a.LastReport())
	assert.Empty(t, b.LastReport())
}

func TestSweep(t *testing.T) {
	m := NewManager(regions.Default(), time.Hour)
	clock := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	old := m.Create()
	clock = clock.Add(45 * time.Minute)
	fresh := m.Create()
	clock = clock.Add(30 * time.Minute)

	assert.Equal(t, 1, m.Sweep())
	_, ok := m.Get(old.ID)
	assert.False(t, ok)
	_, ok = m.Get(fresh.ID)
	assert.True(t, ok)
}

func TestGet_ExpiredSessionIsRemoved(t *testing.T) {
	m := NewManager(regions.Default(), time.Hour)
	clock := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	s := m.Create()
	clock = clock.Add(59 * time.Minute)
	_, ok := m.Get(s.ID)
	require.True(t, ok)

	clock = clock.Add(59 * time.Minute)
	assert.Equal(t, 0, m.Sweep())

	clock = clock.Add(2 * time.Hour)
	_, ok = m.Get(s.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}

func TestGetOrCreate_NeverReturnsSweptSession(t *testing.T) {
	m := NewManager(regions.Default(), time.Hour)
	var (
		clockMu sync.Mutex
		clock   = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	)
	m.now = func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		return clock
	}
	stale := make([]string, 64)
	for i := range stale {
		stale[i] = m.Create().ID
	}
	// 全部会话都已超时，但尚未被清理。
	clockMu.Lock()
	clock = clock.Add(61 * time.Minute)
	clockMu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			m.Sweep()
		}
	}()

	var wg sync.WaitGroup
	for _, id := range stale {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			s, _ := m.GetOrCreate(id)
			m.mu.Lock()
			_, present := m.sessions[s.ID]
			m.mu.Unlock()
			assert.True(t, present, "session %s returned but not registered", s.ID)
		}(id)
	}
	wg.Wait()
	<-done
}

func TestConcurrentAccess(t *testing.T) {
	m := NewManager(regions.Default(), time.Hour)
	s := m.Create()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, _ := m.GetOrCreate(s.ID)
			_ = got.State.Set("MX-HID", i)
			_, _ = got.State.Get("MX-HID")
		}(i)
	}
	wg.Wait()

	v, err := s.State.Get("MX-HID")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, v, 0)
	assert.Less(t, v, 16)
}
