package observatory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_keyedMutex_serializesPerKey(t *testing.T) {
	var km keyedMutex
	counters := map[string]*int{"a": new(int), "b": new(int)}
	var wg sync.WaitGroup
	for range 50 {
		for _, key := range []string{"a", "b"} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock := km.Lock(key)
				defer unlock()
				value := *counters[key]
				*counters[key] = value + 1
			}()
		}
	}
	wg.Wait()
	require.Equal(t, 50, *counters["a"])
	require.Equal(t, 50, *counters["b"])
	require.Zero(t, km.Len())
}

func Test_keyedMutex_independentKeys(t *testing.T) {
	var km keyedMutex
	unlockA := km.Lock("a")
	unlockB := km.Lock("b")
	require.Equal(t, 2, km.Len())
	unlockB()
	unlockA()
	require.Zero(t, km.Len())
}
