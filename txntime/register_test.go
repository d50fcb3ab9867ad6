package txntime

import (
	"sync"
	"testing"

	"github.com/ridge/siltstone/wire"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	r := New()

	_, ok := r.Last()
	require.False(t, ok)
	require.Empty(t, r.Header())

	r.Observe(100)
	last, ok := r.Last()
	require.True(t, ok)
	require.Equal(t, wire.Timestamp(100), last)
	require.Equal(t, "100", r.Header().Get(HeaderLastSeen))

	// older observations never move the register backwards
	r.Observe(50)
	last, _ = r.Last()
	require.Equal(t, wire.Timestamp(100), last)

	r.Observe(200)
	last, _ = r.Last()
	require.Equal(t, wire.Timestamp(200), last)
}

func TestRegisterConcurrent(t *testing.T) {
	r := New()

	var group sync.WaitGroup
	for i := 0; i < 100; i++ {
		i := i
		group.Add(1)
		go func() {
			defer group.Done()
			r.Observe(wire.Timestamp(i))
		}()
	}
	group.Wait()

	last, ok := r.Last()
	require.True(t, ok)
	require.Equal(t, wire.Timestamp(99), last)
}

func TestParse(t *testing.T) {
	ts, err := Parse("981173106789000")
	require.NoError(t, err)
	require.Equal(t, wire.Timestamp(981173106789000), ts)

	_, err = Parse("not a number")
	require.Error(t, err)
}
