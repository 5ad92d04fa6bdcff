package naming

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// CollisionResolver hands out destination paths so that no two items of a
// run write the same file, and nothing already on disk is overwritten.
// Duplicates get a "_dupN" suffix. All methods are goroutine-safe.
type CollisionResolver struct {
	mu       sync.Mutex
	owners   map[string]string // output path → input path that owns it
	counters map[string]int    // requested path → next dup counter
	exists   func(string) bool
}

// NewCollisionResolver returns a resolver that also treats files already
// present on disk as taken.
func NewCollisionResolver() *CollisionResolver {
	return &CollisionResolver{
		owners:   make(map[string]string),
		counters: make(map[string]int),
		exists: func(p string) bool {
			_, err := os.Lstat(p)
			return err == nil
		},
	}
}

// Resolve returns the path input should write. requested is returned as
// is when it is free or already owned by input.
func (cr *CollisionResolver) Resolve(input, requested string) string {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	if cr.free(input, requested) {
		cr.owners[requested] = input
		return requested
	}

	dir := filepath.Dir(requested)
	ext := filepath.Ext(requested)
	stem := strings.TrimSuffix(filepath.Base(requested), ext)

	counter := max(cr.counters[requested], 1)
	for {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_dup%d%s", stem, counter, ext))
		counter++
		if cr.free(input, candidate) {
			cr.counters[requested] = counter
			cr.owners[candidate] = input
			return candidate
		}
	}
}

// Release forgets a reservation, e.g. after the owning item failed and
// removed its partial output.
func (cr *CollisionResolver) Release(path string) {
	cr.mu.Lock()
	delete(cr.owners, path)
	cr.mu.Unlock()
}

func (cr *CollisionResolver) free(input, path string) bool {
	owner, claimed := cr.owners[path]
	if claimed {
		return owner == input
	}
	return !cr.exists(path)
}
