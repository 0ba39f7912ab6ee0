package viewstate

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memBackend is an in-memory Backend whose writes can be held open.
type memBackend struct {
	mu      sync.Mutex
	data    map[string][]byte
	writes  []string
	gate    chan struct{}
	started chan struct{}
	readErr error
}

func newMemBackend() *memBackend {
	return &memBackend{data: make(map[string][]byte)}
}

func (m *memBackend) GetViewState(_ context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	d, ok := m.data[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return d, nil
}

func (m *memBackend) SetViewState(_ context.Context, id string, data []byte) error {
	if m.started != nil {
		m.started <- struct{}{}
	}
	if m.gate != nil {
		<-m.gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[id] = data
	m.writes = append(m.writes, string(data))
	return nil
}

func (m *memBackend) DeleteViewState(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
	return nil
}

func stateWith(files ...string) ViewState {
	v := New()
	for _, f := range files {
		v.Open(f)
	}
	if len(files) > 0 {
		v.ActiveFile = files[len(files)-1]
	}
	return v
}

func TestStore_SetThenGet(t *testing.T) {
	b := newMemBackend()
	s := NewStore(b)

	s.Set("s1", stateWith("a", "b"))
	s.Wait()

	got, ok := s.Get(context.Background(), "s1")
	require.True(t, ok)
	assert.True(t, stateWith("a", "b").Equal(got))
}

func TestStore_GetMissingAndFailing(t *testing.T) {
	b := newMemBackend()
	s := NewStore(b)

	_, ok := s.Get(context.Background(), "nope")
	assert.False(t, ok)

	b.data["bad"] = []byte("{not json")
	_, ok = s.Get(context.Background(), "bad")
	assert.False(t, ok)

	b.readErr = errors.New("disk on fire")
	_, ok = s.Get(context.Background(), "bad")
	assert.False(t, ok)
}

func TestStore_CoalescesWhileInFlight(t *testing.T) {
	b := newMemBackend()
	b.gate = make(chan struct{})
	b.started = make(chan struct{}, 4)
	s := NewStore(b)

	s.Set("s1", stateWith("first"))
	<-b.started // first write is now in flight

	s.Set("s1", stateWith("second"))
	s.Set("s1", stateWith("third"))

	// Reads see the newest queued state before it lands.
	got, ok := s.Get(context.Background(), "s1")
	require.True(t, ok)
	assert.Equal(t, "third", got.ActiveFile)

	close(b.gate)
	s.Wait()

	require.Len(t, b.writes, 2, "queued writes collapse to the latest")
	var last ViewState
	require.NoError(t, json.Unmarshal([]byte(b.writes[1]), &last))
	assert.Equal(t, "third", last.ActiveFile)
}

func TestStore_DeleteOrderedAfterWrite(t *testing.T) {
	b := newMemBackend()
	b.gate = make(chan struct{})
	b.started = make(chan struct{}, 1)
	s := NewStore(b)

	s.Set("s1", stateWith("a"))
	<-b.started
	s.Delete("s1")

	_, ok := s.Get(context.Background(), "s1")
	assert.False(t, ok)

	close(b.gate)
	s.Wait()

	_, ok = s.Get(context.Background(), "s1")
	assert.False(t, ok)
	_, exists := b.data["s1"]
	assert.False(t, exists)
}

func TestStore_SetCopiesState(t *testing.T) {
	b := newMemBackend()
	s := NewStore(b)

	v := stateWith("a")
	s.Set("s1", v)
	v.Open("mutated-after-set")
	s.Wait()

	got, ok := s.Get(context.Background(), "s1")
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, got.OpenFiles)
}
