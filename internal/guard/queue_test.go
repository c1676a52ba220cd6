package guard

import (
	"sync"
	"testing"
	"time"
)

func TestQueuePushPop(t *testing.T) {
	t.Parallel()

	q := NewQueue[int](4)
	q.Push(1)
	q.Push(2)
	q.Push(3)

	if q.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", q.Len())
	}

	for want := 1; want <= 3; want++ {
		item, ok := q.Pop(time.Second)
		if !ok {
			t.Fatalf("Pop() empty at %d", want)
		}
		if item.Payload != want {
			t.Errorf("Pop() = %d, want %d", item.Payload, want)
		}
		if item.EnqueuedAt.IsZero() {
			t.Error("EnqueuedAt not set")
		}
	}
}

func TestQueueDropsOldestWhenFull(t *testing.T) {
	t.Parallel()

	q := NewQueue[int](2)
	q.Push(1)
	q.Push(2)
	q.Push(3) // evicts 1

	if got := q.Dropped(); got != 1 {
		t.Fatalf("Dropped() = %d, want 1", got)
	}

	item, ok := q.Pop(0)
	if !ok || item.Payload != 2 {
		t.Fatalf("first Pop() = %v/%v, want 2/true", item.Payload, ok)
	}
	item, ok = q.Pop(0)
	if !ok || item.Payload != 3 {
		t.Fatalf("second Pop() = %v/%v, want 3/true", item.Payload, ok)
	}
}

func TestQueuePopTimeout(t *testing.T) {
	t.Parallel()

	q := NewQueue[string](1)

	start := time.Now()
	_, ok := q.Pop(20 * time.Millisecond)
	if ok {
		t.Fatal("Pop() on empty queue returned ok")
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("Pop() returned after %v, want at least 20ms", elapsed)
	}

	// Zero timeout polls without waiting.
	if _, ok := q.Pop(0); ok {
		t.Fatal("Pop(0) on empty queue returned ok")
	}
}

func TestQueuePopUnblocksOnPush(t *testing.T) {
	t.Parallel()

	q := NewQueue[int](1)
	done := make(chan Item[int], 1)
	go func() {
		item, ok := q.Pop(time.Second)
		if ok {
			done <- item
		}
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	q.Push(42)

	item, ok := <-done
	if !ok || item.Payload != 42 {
		t.Fatalf("Pop() = %v/%v, want 42/true", item.Payload, ok)
	}
}

func TestQueueConcurrentProducers(t *testing.T) {
	t.Parallel()

	q := NewQueue[int](8)
	const producers = 4
	const perProducer = 200

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(i)
			}
		}()
	}

	received := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, ok := q.Pop(50 * time.Millisecond); !ok {
				return
			}
			received++
		}
	}()

	wg.Wait()
	<-done

	total := uint64(received) + q.Dropped() + uint64(q.Len())
	if total != producers*perProducer {
		t.Fatalf("received(%d) + dropped(%d) + queued(%d) = %d, want %d",
			received, q.Dropped(), q.Len(), total, producers*perProducer)
	}
}
