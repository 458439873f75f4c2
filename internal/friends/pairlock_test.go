package friends

import (
	"sync"
	"testing"
	"time"
)

func TestPairKeyIgnoresOrderAndCase(t *testing.T) {
	if pairKey("Alice", "bob") != pairKey("BOB", " alice ") {
		t.Fatalf("expected the same key for both orderings and casings")
	}
	if pairKey("alice", "bob") == pairKey("alice", "carol") {
		t.Fatalf("different pairs must not share a key")
	}
}

func TestPairLockerSerializesSamePair(t *testing.T) {
	locker := newPairLocker()

	unlock := locker.Lock("alice", "bob")

	acquired := make(chan struct{})
	go func() {
		// Opposite argument order must still contend.
		u := locker.Lock("bob", "alice")
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatalf("second lock on the same pair acquired while held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("second lock never acquired after release")
	}
}

func TestPairLockerDistinctPairsDoNotContend(t *testing.T) {
	locker := newPairLocker()

	unlock := locker.Lock("alice", "bob")
	defer unlock()

	done := make(chan struct{})
	go func() {
		u := locker.Lock("carol", "dave")
		u()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("distinct pair blocked behind an unrelated lock")
	}
}

func TestPairLockerReleasesEntries(t *testing.T) {
	locker := newPairLocker()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locker.Lock("alice", "bob")
			unlock()
		}()
	}
	wg.Wait()

	locker.mu.Lock()
	defer locker.mu.Unlock()
	if len(locker.locks) != 0 {
		t.Fatalf("expected lock table to be empty, got %d entries", len(locker.locks))
	}
}
