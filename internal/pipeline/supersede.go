package pipeline

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/killkli/boyo-app-share/internal/storage"
)

// Superseder retires the storage objects of a replaced upload. It runs only
// after the new upload is confirmed published, so nothing it does can make
// the app unservable: a failed deletion leaks an orphaned object, which costs
// money but never correctness. Failures are therefore logged and swallowed.
type Superseder struct {
	store storage.Storage
}

func NewSuperseder(store storage.Storage) *Superseder {
	return &Superseder{store: store}
}

// Supersede deletes the objects of the old published state that the new state
// no longer references.
//
// Old archive: diff-based deletion, old manifest keys minus the new state's
// key set. Old and new keys overlap whenever a re-upload keeps a path under
// the same app prefix; those keys were just rewritten with the new content
// and must not be deleted.
//
// Old single file: the one old key, and only when the new root landed on a
// different key (same-key overwrites need no delete, and issuing one would
// race the publish that just completed).
func (s *Superseder) Supersede(ctx context.Context, old, next Published) {
	var stale []string
	switch prev := old.(type) {
	case Archive:
		keep := make(map[string]struct{})
		switch cur := next.(type) {
		case Archive:
			for _, k := range cur.Manifest {
				keep[k] = struct{}{}
			}
		case SingleFile:
			keep[cur.Key] = struct{}{}
		}
		for _, k := range prev.Manifest {
			if _, ok := keep[k]; !ok {
				stale = append(stale, k)
			}
		}
	case SingleFile:
		if prev.Key != next.RootKey() {
			stale = append(stale, prev.Key)
		}
	}

	s.deleteAll(ctx, stale)
}

// CleanupThumbnail deletes the old thumbnail when a new one was published
// under a different key. Like all supersession cleanup it is best-effort.
func (s *Superseder) CleanupThumbnail(ctx context.Context, oldKey, newKey string) {
	if oldKey == "" || oldKey == newKey {
		return
	}
	s.deleteAll(ctx, []string{oldKey})
}

func (s *Superseder) deleteAll(ctx context.Context, keys []string) {
	var wg sync.WaitGroup
	for _, key := range keys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			if err := s.store.Delete(ctx, key); err != nil {
				logCleanupFailure(key, err)
			}
		}(key)
	}
	wg.Wait()
}

func logCleanupFailure(key string, err error) {
	entry := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"level": "warn",
		"msg":   "storage_cleanup_failed",
		"key":   key,
		"error": err.Error(),
	}
	if b, err := json.Marshal(entry); err == nil {
		log.SetFlags(0)
		log.Println(string(b))
	}
}
