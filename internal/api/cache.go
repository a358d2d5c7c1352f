package api

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// DumpCache keeps zstd-compressed API dumps on disk, one file per client
// version. A dump never changes for a given version, so entries never expire.
type DumpCache struct {
	dir string
}

func NewDumpCache(dir string) *DumpCache {
	return &DumpCache{dir: dir}
}

func (c *DumpCache) path(version string) string {
	// Versions look like "version-<hex>"; anything path-like is flattened.
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(version)
	return filepath.Join(c.dir, safe+".json.zst")
}

// Save compresses and writes dump bytes for version. The write goes through a
// temporary file so a crash never leaves a truncated entry behind.
func (c *DumpCache) Save(version string, data []byte) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("creating dump cache dir: %w", err)
	}

	f, err := os.CreateTemp(c.dir, ".dump-*")
	if err != nil {
		return fmt.Errorf("creating cache file: %w", err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	w, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("creating zstd writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		f.Close()
		return fmt.Errorf("writing compressed data: %w", err)
	}
	if err := w.Close(); err != nil {
		f.Close()
		return fmt.Errorf("closing zstd writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing cache file: %w", err)
	}

	if err := os.Rename(tmp, c.path(version)); err != nil {
		return fmt.Errorf("renaming cache file: %w", err)
	}
	return nil
}

// Load returns the cached dump bytes for version.
func (c *DumpCache) Load(version string) ([]byte, error) {
	f, err := os.Open(c.path(version))
	if err != nil {
		return nil, fmt.Errorf("opening cache file: %w", err)
	}
	defer f.Close()

	r, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("creating zstd reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompressing cached dump %s: %w", version, err)
	}
	return data, nil
}

// Has checks whether a dump for version is cached.
func (c *DumpCache) Has(version string) bool {
	_, err := os.Stat(c.path(version))
	return err == nil
}

// Clear removes every cached dump and returns how many were deleted.
func (c *DumpCache) Clear() (int, error) {
	entries, err := os.ReadDir(c.dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading dump cache dir: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json.zst") {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil {
			return removed, fmt.Errorf("removing %s: %w", e.Name(), err)
		}
		removed++
	}
	return removed, nil
}
