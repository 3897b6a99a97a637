// Package registry locates SVD documents in an on-disk collection laid out
// as root/vendor/file.svd. It only hands back raw bytes; interpreting them is
// the parser's job.
package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when no document matches a lookup.
var ErrNotFound = errors.New("svd document not found")

// Registry is a read-only view of a document collection rooted at a
// directory.
type Registry struct {
	Root string
}

func New(root string) *Registry {
	return &Registry{Root: root}
}

// Vendors lists the vendor directories of the collection.
func (r *Registry) Vendors() ([]string, error) {
	entries, err := os.ReadDir(r.Root)
	if err != nil {
		return nil, err
	}
	var vendors []string
	for _, entry := range entries {
		if entry.IsDir() {
			vendors = append(vendors, entry.Name())
		}
	}
	return vendors, nil
}

// SVD returns the raw bytes of a vendor's document. The filename is tried
// verbatim first; failing that, the vendor directory is searched for a
// case-insensitive match. The .svd extension may be omitted.
func (r *Registry) SVD(vendor, filename string) ([]byte, error) {
	if !strings.HasSuffix(strings.ToLower(filename), ".svd") {
		filename += ".svd"
	}

	direct := filepath.Join(r.Root, vendor, filename)
	if data, err := os.ReadFile(direct); err == nil {
		return data, nil
	}

	path, err := r.find(filepath.Join(r.Root, vendor), filename)
	if err != nil {
		return nil, fmt.Errorf("%s/%s: %w", vendor, filename, err)
	}
	return os.ReadFile(path)
}

// ForMCU searches the whole collection for the document describing the named
// microcontroller, matching mcu.svd case-insensitively.
func (r *Registry) ForMCU(mcu string) ([]byte, error) {
	path, err := r.find(r.Root, mcu+".svd")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", mcu, err)
	}
	return os.ReadFile(path)
}

func (r *Registry) find(root, filename string) (string, error) {
	var found string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return ErrNotFound
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(d.Name(), filename) {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", ErrNotFound
	}
	return found, nil
}
