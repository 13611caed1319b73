package pipeline

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
)

// Extract unpacks a ZIP byte buffer into one Entry per non-directory member,
// in the archive's own enumeration order. Directory entries carry no content
// and are skipped. Member paths are kept exactly as stored; the publisher's
// namespace prefix makes traversal sequences harmless, so no sanitization
// happens here.
//
// Returns ErrMalformedArchive when the bytes are not a valid ZIP and
// ErrEmptyArchive when the archive holds no usable files.
func Extract(data []byte) ([]Entry, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
	}

	entries := make([]Entry, 0, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %v", ErrMalformedArchive, f.Name, err)
		}
		content, readErr := io.ReadAll(rc)
		rc.Close()
		if readErr != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrMalformedArchive, f.Name, readErr)
		}
		entries = append(entries, Entry{
			Path:    f.Name,
			Content: content,
			// The header size is whatever the archive declares; untrusted, kept
			// for reporting only.
			Size:        int64(f.UncompressedSize64),
			ContentType: ResolveContentType(f.Name),
		})
	}

	if len(entries) == 0 {
		return nil, ErrEmptyArchive
	}
	return entries, nil
}
