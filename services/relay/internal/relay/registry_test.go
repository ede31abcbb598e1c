package relay

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()

	a, b := newFake("a"), newFake("b")
	reg.Add(a)
	reg.Add(b)
	reg.Add(a)

	assert.Equal(t, 2, reg.Len())
	assert.True(t, reg.Has(a))
	assert.ElementsMatch(t, []Conn{a, b}, reg.Snapshot())

	assert.True(t, reg.Remove(a))
	assert.False(t, reg.Remove(a))
	assert.False(t, reg.Has(a))
	assert.Equal(t, 1, reg.Len())
}

func TestRegistryConcurrent(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := newFake(fmt.Sprintf("c-%d", i))
			reg.Add(c)
			_ = reg.Snapshot()
			if i%2 == 0 {
				reg.Remove(c)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 25, reg.Len())
}
