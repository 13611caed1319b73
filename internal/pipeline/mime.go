package pipeline

import "strings"

// contentTypes maps lowercased file extensions to the content type the
// object is published with.
var contentTypes = map[string]string{
	"html": "text/html",
	"htm":  "text/html",

	"css": "text/css",

	"js":  "application/javascript",
	"mjs": "application/javascript",

	"json": "application/json",

	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"svg":  "image/svg+xml",
	"webp": "image/webp",
	"ico":  "image/x-icon",

	"woff":  "font/woff",
	"woff2": "font/woff2",
	"ttf":   "font/ttf",
	"otf":   "font/otf",

	"pdf": "application/pdf",
	"txt": "text/plain",
	"md":  "text/markdown",

	"zip": "application/zip",
	"gz":  "application/gzip",

	"xml": "application/xml",
}

// ResolveContentType returns the content type for a file path based on its
// extension. Only the final path segment matters; unknown or missing
// extensions resolve to application/octet-stream.
func ResolveContentType(path string) string {
	name := path
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return "application/octet-stream"
	}
	if ct, ok := contentTypes[strings.ToLower(name[i+1:])]; ok {
		return ct
	}
	return "application/octet-stream"
}
