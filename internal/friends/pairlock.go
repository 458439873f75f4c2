package friends

import (
	"sort"
	"strings"
	"sync"
)

// pairLocker serializes relationship mutations per unordered username
// pair. Different pairs never contend. Entries are reference counted so
// the map does not grow with every pair ever seen.
type pairLocker struct {
	mu    sync.Mutex
	locks map[string]*pairLock
}

type pairLock struct {
	mu   sync.Mutex
	refs int
}

func newPairLocker() *pairLocker {
	return &pairLocker{locks: make(map[string]*pairLock)}
}

// Lock acquires the mutex for the unordered pair and returns the
// corresponding unlock function.
func (l *pairLocker) Lock(a, b string) func() {
	key := pairKey(a, b)

	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &pairLock{}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

// pairKey builds a canonical key for the unordered pair, insensitive to
// argument order and username casing.
func pairKey(a, b string) string {
	pair := []string{strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))}
	sort.Strings(pair)
	return pair[0] + "\x00" + pair[1]
}
