package pipeline

import (
	"encoding/json"
	"errors"
)

// Package pipeline implements the archive ingestion flow: unpack an uploaded
// ZIP, pick the root document, publish every file to object storage under a
// per-app namespace, and retire the previous upload's objects on re-upload.
// It holds no state of its own; the object storage client is injected.

var (
	// ErrMalformedArchive means the uploaded bytes could not be parsed as a ZIP.
	ErrMalformedArchive = errors.New("malformed archive")
	// ErrEmptyArchive means the archive parsed but contains no files to publish.
	ErrEmptyArchive = errors.New("archive contains no files")
	// ErrNoEntryPoint means the archive has no HTML file to serve as the root document.
	ErrNoEntryPoint = errors.New("no html entry point in archive")
	// ErrPublishFailed means one or more object uploads failed; nothing from the
	// attempt may be persisted.
	ErrPublishFailed = errors.New("publish to storage failed")
)

// Entry is one file unpacked from an uploaded archive. It lives only for the
// duration of a pipeline run: its content becomes a storage object and its
// path becomes a manifest key.
type Entry struct {
	Path        string
	Content     []byte
	Size        int64
	ContentType string
}

// Manifest maps archive-relative paths to the storage keys they were
// published under. A manifest is only ever recorded after every one of its
// keys has been durably written.
type Manifest map[string]string

// Keys returns the set of storage keys the manifest points at.
func (m Manifest) Keys() []string {
	keys := make([]string, 0, len(m))
	for _, k := range m {
		keys = append(keys, k)
	}
	return keys
}

// MarshalManifest encodes a manifest for the database column. A nil manifest
// encodes as nil, which is how single-file apps are stored.
func MarshalManifest(m Manifest) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// UnmarshalManifest decodes a manifest column value. nil or SQL NULL input
// yields a nil manifest.
func UnmarshalManifest(data []byte) (Manifest, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Published is the committed storage state of one app version. It is a
// two-variant union: a single published file, or an archive with a manifest.
// Downstream code type-switches on it instead of null-checking a manifest.
type Published interface {
	// RootKey is the storage key of the document served when the app opens.
	RootKey() string
}

// SingleFile is the published state of a paste or single-file upload.
type SingleFile struct {
	Key string
}

func (s SingleFile) RootKey() string { return s.Key }

// Archive is the published state of a ZIP upload.
type Archive struct {
	Root     string
	Manifest Manifest
}

func (a Archive) RootKey() string { return a.Root }
