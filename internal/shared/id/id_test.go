package id

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefixes(t *testing.T) {
	tests := []struct {
		prefix string
		id     string
	}{
		{SessionPrefix, NewSessionID().String()},
		{RequestPrefix, NewRequestID().String()},
		{ContextPrefix, NewContextID().String()},
		{ConnectionPrefix, NewConnectionID().String()},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			prefix, rest, ok := strings.Cut(tt.id, "_")
			require.True(t, ok, tt.id)
			assert.Equal(t, tt.prefix, prefix)
			assert.Len(t, rest, 26)
		})
	}
}

func TestSessionIDsSortInCreationOrder(t *testing.T) {
	ids := make([]string, 1000)
	for i := range ids {
		ids[i] = NewSessionID().String()
	}
	assert.True(t, sort.StringsAreSorted(ids))
	for i := 1; i < len(ids); i++ {
		assert.NotEqual(t, ids[i-1], ids[i])
	}
}

func TestConcurrentUniqueness(t *testing.T) {
	const workers, each = 16, 200

	var (
		mu   sync.Mutex
		seen = make(map[ContextID]bool, workers*each)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				id := NewContextID()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers*each)
}

func TestParseSessionID(t *testing.T) {
	valid := NewSessionID()

	parsed, err := ParseSessionID(valid.String())
	require.NoError(t, err)
	assert.Equal(t, valid, parsed)

	invalid := []string{
		"",
		"sess_",
		"sess_invalid",
		NewRequestID().String(),
		strings.TrimPrefix(valid.String(), "sess_"),
		"sess_zzzzzzzzzzzzzzzzzzzzzzzzzz",
	}
	for _, s := range invalid {
		_, err := ParseSessionID(s)
		assert.True(t, errors.Is(err, ErrInvalidID), s)
	}
}

func BenchmarkNewSessionID(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = NewSessionID()
	}
}
