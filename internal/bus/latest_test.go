package bus

import (
	"sync"
	"testing"
)

func TestLatestTryRecvAllDrainsToNewest(t *testing.T) {
	l := NewLatest[int]()

	if _, ok := l.TryRecvAll(); ok {
		t.Fatalf("expected empty mailbox to report no item")
	}

	l.Send(1)
	l.Send(2)
	l.Send(3)

	v, ok := l.TryRecvAll()
	if !ok || v != 3 {
		t.Fatalf("expected newest value 3, got %v (ok=%v)", v, ok)
	}

	if _, ok := l.TryRecvAll(); ok {
		t.Fatalf("expected mailbox to be empty after drain")
	}
}

func TestLatestPeekDoesNotClear(t *testing.T) {
	l := NewLatest[string]()
	l.Send("hello")

	v, ok := l.Peek()
	if !ok || v != "hello" {
		t.Fatalf("unexpected peek result: %v %v", v, ok)
	}

	v, ok = l.TryRecvAll()
	if !ok || v != "hello" {
		t.Fatalf("expected peek to leave value intact, got %v %v", v, ok)
	}
}

func TestLatestConcurrentSendIsRaceFree(t *testing.T) {
	l := NewLatest[int]()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			l.Send(n)
		}(i)
	}
	wg.Wait()

	if _, ok := l.TryRecvAll(); !ok {
		t.Fatalf("expected a value after concurrent sends")
	}
}

func TestLosslessOrderedNoDrop(t *testing.T) {
	l := NewLossless[int](8)
	for i := 0; i < 8; i++ {
		l.Send(i)
	}
	for i := 0; i < 8; i++ {
		if got := <-l.Chan(); got != i {
			t.Fatalf("expected %d, got %d", i, got)
		}
	}
}

func TestLosslessTrySendReportsFull(t *testing.T) {
	l := NewLossless[int](1)
	if !l.TrySend(1) {
		t.Fatalf("expected first send to succeed")
	}
	if l.TrySend(2) {
		t.Fatalf("expected second send on full buffer to fail")
	}
}
