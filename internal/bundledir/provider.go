// Package bundledir is the file-system abstraction for the bundle directory,
// where schema bundles live as plain JSON files.
package bundledir

import "time"

// FileInfo describes one bundle file on disk.
type FileInfo struct {
	Path      string
	Checksum  string
	UpdatedAt time.Time
}

// Provider is the interface for bundle file operations.
type Provider interface {
	// List returns metadata for every .json file under dir (relative to the bundle root).
	List(dir string) ([]FileInfo, error)
	// Read returns the raw bytes of the file at path (relative to the bundle root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to the bundle root).
	Write(path string, content []byte) error
}
