package util

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMPSCSingleProducerOrder(t *testing.T) {
	q := NewMPSC[int]()
	defer q.Close()

	for i := 0; i < 100; i++ {
		v := i
		require.True(t, q.Push(&v))
	}

	for i := 0; i < 100; i++ {
		select {
		case v := <-q.Recv():
			require.Equal(t, i, *v)
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for item %d", i)
		}
	}
}

func TestMPSCRejectsNilAndClosed(t *testing.T) {
	q := NewMPSC[int]()
	assert.False(t, q.Push(nil))

	q.Close()
	assert.True(t, q.IsClosed())
	v := 1
	assert.False(t, q.Push(&v))
}

func TestMPSCConcurrentProducers(t *testing.T) {
	q := NewMPSC[[2]int]()
	defer q.Close()

	const producers = 8
	const perProducer = 2000

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				item := [2]int{p, i}
				q.Push(&item)
			}
		}(p)
	}

	// per producer order must be preserved
	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}
	for n := 0; n < producers*perProducer; n++ {
		select {
		case item := <-q.Recv():
			p, i := item[0], item[1]
			require.Equal(t, last[p]+1, i, "producer %d out of order", p)
			last[p] = i
		case <-time.After(5 * time.Second):
			t.Fatalf("timeout after %d items", n)
		}
	}
	wg.Wait()
}

func TestMPSCCloseDrains(t *testing.T) {
	q := NewMPSC[int]()
	for i := 0; i < 10; i++ {
		v := i
		q.Push(&v)
	}
	q.Close()

	count := 0
	for range q.Recv() {
		count++
	}
	assert.Equal(t, 10, count)
}
