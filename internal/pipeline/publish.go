package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/killkli/boyo-app-share/internal/storage"
)

// Published objects never change under a given key; supersession replaces
// keys wholesale, so a year-long cache directive is safe.
const immutableCacheControl = "public, max-age=31536000"

const thumbnailPrefix = "thumbnails"

// Publisher uploads extracted files to object storage under a per-app
// namespace prefix. It never retries; retrying a failed publish is the
// caller's call, and re-putting the same key with the same content is safe.
type Publisher struct {
	store     storage.Storage
	namespace string
}

// NewPublisher creates a Publisher writing under the given namespace prefix
// (e.g. "apps" produces keys of the form apps/{appID}/{path}).
func NewPublisher(store storage.Storage, namespace string) *Publisher {
	return &Publisher{store: store, namespace: namespace}
}

// ArchiveKey returns the storage key an archive entry path publishes to.
func (p *Publisher) ArchiveKey(appID, path string) string {
	return p.namespace + "/" + appID + "/" + path
}

// SingleFileKey returns the fixed storage key single-file uploads publish to.
func (p *Publisher) SingleFileKey(appID string) string {
	return p.namespace + "/" + appID + "/index.html"
}

// PublishArchive uploads every entry concurrently and returns the manifest of
// path to storage key. If any upload fails the whole publish fails with
// ErrPublishFailed and the partial result is discarded; the caller must not
// persist anything from the attempt.
func (p *Publisher) PublishArchive(ctx context.Context, appID string, entries []Entry) (Manifest, error) {
	manifest := make(Manifest, len(entries))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for _, e := range entries {
		wg.Add(1)
		go func(e Entry) {
			defer wg.Done()
			key := p.ArchiveKey(appID, e.Path)
			_, err := p.store.Put(ctx, key, bytes.NewReader(e.Content), storage.PutObjectOptions{
				Size:         int64(len(e.Content)),
				ContentType:  e.ContentType,
				CacheControl: immutableCacheControl,
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("%w: put %s: %v", ErrPublishFailed, key, err)
				}
				return
			}
			manifest[e.Path] = key
		}(e)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return manifest, nil
}

// PublishSingle uploads a standalone document to the app's fixed index.html
// key and returns that key. No manifest exists for single-file apps.
func (p *Publisher) PublishSingle(ctx context.Context, appID string, content []byte, contentType string) (string, error) {
	key := p.SingleFileKey(appID)
	_, err := p.store.Put(ctx, key, bytes.NewReader(content), storage.PutObjectOptions{
		Size:         int64(len(content)),
		ContentType:  contentType,
		CacheControl: immutableCacheControl,
	})
	if err != nil {
		return "", fmt.Errorf("%w: put %s: %v", ErrPublishFailed, key, err)
	}
	return key, nil
}

// PublishThumbnail uploads a PNG preview image and returns its key. Thumbnails
// live outside the app namespace so content supersession never touches them.
func (p *Publisher) PublishThumbnail(ctx context.Context, appID string, png []byte) (string, error) {
	key := thumbnailPrefix + "/" + appID + ".png"
	_, err := p.store.Put(ctx, key, bytes.NewReader(png), storage.PutObjectOptions{
		Size:         int64(len(png)),
		ContentType:  "image/png",
		CacheControl: immutableCacheControl,
	})
	if err != nil {
		return "", fmt.Errorf("%w: put %s: %v", ErrPublishFailed, key, err)
	}
	return key, nil
}
