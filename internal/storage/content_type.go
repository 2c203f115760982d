package storage

import (
	"mime"
	"path/filepath"
	"strings"
)

// importExtensions maps the import file extensions to their MIME types.
// The standard library's table does not know either of them.
var importExtensions = map[string]string{
	".csv":  "text/csv",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// DetectContentType determines the MIME type of an uploaded file.
//
// Detection priority:
//  1. providedType, e.g. the multipart part header
//  2. the import extension table
//  3. mime.TypeByExtension
//  4. "application/octet-stream"
func DetectContentType(providedType, filename string) string {
	if t := strings.TrimSpace(providedType); t != "" && t != "application/octet-stream" {
		return t
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if t, ok := importExtensions[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
