// Package storage archives uploaded customer import files.
//
// Two providers implement Storage:
//   - LocalStorage writes under a directory on disk (development)
//   - R2Storage writes to a Cloudflare R2 (S3-compatible) bucket
//
// Archives are write-once. Keys are generated per upload, so a collision
// means a bug and Put refuses to overwrite unless asked to.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Storage defines the operations the import archive needs.
type Storage interface {
	// Put stores data at key. ErrKeyExists is returned when the key is taken
	// and opts.Overwrite is false. ErrTooLarge when data exceeds opts.MaxSize.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error

	// Get opens the object at key. The caller must close the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Delete removes the object at key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether an object is stored at key.
	Exists(ctx context.Context, key string) (bool, error)
}

// =============================================================================
// Data Types
// =============================================================================

// PutOptions configures how an object is stored.
type PutOptions struct {
	ContentType string
	MaxSize     int64 // 0 means no limit
	Overwrite   bool

	// Metadata is attached to the object where the provider supports it
	// (R2 user metadata). LocalStorage ignores it.
	Metadata map[string]string
}

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
}

// =============================================================================
// Configuration Types
// =============================================================================

const (
	ProviderLocal = "local"
	ProviderR2    = "r2"
)

// Config selects and configures a provider.
type Config struct {
	Provider string
	Local    LocalConfig
	R2       R2Config
}

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	// BasePath is the root directory, e.g. "./storage".
	BasePath string
}

// R2Config holds configuration for Cloudflare R2 storage.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string

	// Endpoint overrides the account endpoint. Any S3-compatible server works.
	Endpoint string

	// Region defaults to "auto".
	Region string
}

// New creates the configured provider.
func New(cfg Config, logger *slog.Logger) (Storage, error) {
	switch cfg.Provider {
	case "", ProviderLocal:
		return NewLocalStorage(cfg.Local, logger)
	case ProviderR2:
		return NewR2Storage(cfg.R2, logger)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}

// =============================================================================
// Key Generation
// =============================================================================

// ImportKey generates the archive key for an uploaded import file.
// Format: imports/{tenantID}/{buildingID}/{uuid}{ext}
//
// Example: "imports/3/12/987fcdeb-51a2-43f1-b9c4-12345678abcd.xlsx"
func ImportKey(tenantID, buildingID, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("imports/%s/%s/%s%s", keySegment(tenantID), keySegment(buildingID), uuid.New(), ext)
}

// keySegment keeps backend ids from introducing path separators.
func keySegment(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(s)
}
