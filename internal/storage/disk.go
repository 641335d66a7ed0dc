package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DiskStore keeps objects as files under a root directory. Keys use forward
// slashes and map to paths relative to the root.
type DiskStore struct {
	root string
}

// NewDiskStore opens (and creates if needed) a store rooted at root.
func NewDiskStore(root string) (*DiskStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}
	return &DiskStore{root: abs}, nil
}

// Path returns the file path for key.
func (d *DiskStore) Path(key string) string {
	return filepath.Join(d.root, filepath.FromSlash(key))
}

// Key returns the key for a file path under the root, or false if outside it.
func (d *DiskStore) Key(path string) (string, bool) {
	rel, err := filepath.Rel(d.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// List walks the directory holding prefix and returns matching regular files.
func (d *DiskStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	dir := d.Path(prefix)
	if !strings.HasSuffix(prefix, "/") && prefix != "" {
		dir = filepath.Dir(dir)
	}
	var out []ObjectInfo
	err := filepath.WalkDir(dir, func(p string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if os.IsNotExist(walkErr) {
				return fs.SkipDir
			}
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() || !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			return nil
		}
		key, ok := d.Key(p)
		if !ok || !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return nil
		}
		out = append(out, ObjectInfo{Key: key, Size: info.Size(), ModTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Get reads the whole object.
func (d *DiskStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(d.Path(key))
	if err != nil {
		return nil, d.wrap(key, err)
	}
	return data, nil
}

// GetRange reads up to length bytes at offset. Reading past the end returns what exists.
func (d *DiskStore) GetRange(ctx context.Context, key string, offset, length int64) ([]byte, error) {
	f, err := os.Open(d.Path(key))
	if err != nil {
		return nil, d.wrap(key, err)
	}
	defer f.Close()
	buf := make([]byte, length)
	n, err := f.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return buf[:n], nil
}

// Put writes data to a temporary file and renames it into place, so readers
// see either the old or the new content. The content digest is recorded in a
// hidden sidecar next to the file so Stat never has to read the object.
func (d *DiskStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	dst := d.Path(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("create dir for %s: %w", key, err)
	}
	tmp, err := writeTemp(filepath.Dir(dst), data)
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	info, err := os.Stat(tmp)
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("stat %s: %w", key, err)
	}
	sum := sha256.Sum256(data)
	sidecar := fmt.Sprintf("%s %d %d\n", hex.EncodeToString(sum[:]), info.Size(), info.ModTime().UnixNano())
	// sidecar first: until the rename lands it describes a file that is not
	// there yet, and Stat falls back to hashing
	if err := d.writeSidecar(dst, sidecar); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("record digest for %s: %w", key, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", key, err)
	}
	return nil
}

// Stat reports size and fingerprint from file metadata and the digest
// recorded by Put. Files written outside the store are hashed instead.
func (d *DiskStore) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	path := d.Path(key)
	info, err := os.Stat(path)
	if err != nil {
		return ObjectInfo{}, d.wrap(key, err)
	}
	digest, ok := readSidecar(path, info)
	if !ok {
		if digest, err = hashFile(path); err != nil {
			return ObjectInfo{}, d.wrap(key, err)
		}
	}
	return ObjectInfo{
		Key:         key,
		Size:        info.Size(),
		Fingerprint: digest,
		ModTime:     info.ModTime(),
	}, nil
}

func sidecarPath(path string) string {
	return filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".sha256")
}

func (d *DiskStore) writeSidecar(path, content string) error {
	tmp, err := writeTemp(filepath.Dir(path), []byte(content))
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, sidecarPath(path)); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// readSidecar returns the recorded digest when it still describes the file.
func readSidecar(path string, info fs.FileInfo) (string, bool) {
	raw, err := os.ReadFile(sidecarPath(path))
	if err != nil {
		return "", false
	}
	var (
		digest string
		size   int64
		mtime  int64
	)
	if _, err := fmt.Sscanf(string(raw), "%s %d %d", &digest, &size, &mtime); err != nil {
		return "", false
	}
	if size != info.Size() || mtime != info.ModTime().UnixNano() {
		return "", false
	}
	return digest, true
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func writeTemp(dir string, data []byte) (string, error) {
	tmp, err := os.CreateTemp(dir, ".put-*")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// URI returns a file:// URI for key.
func (d *DiskStore) URI(key string) string {
	return "file://" + filepath.ToSlash(d.Path(key))
}

// Close is a no-op for DiskStore.
func (d *DiskStore) Close() error {
	return nil
}

func (d *DiskStore) wrap(key string, err error) error {
	if os.IsNotExist(err) {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return fmt.Errorf("open %s: %w", key, err)
}

// DiskUsageBytes returns the total size in bytes of the given paths.
// Each path may be a file or a directory (recursively summed).
// Missing paths are skipped; errors during walk are returned.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		err := filepath.WalkDir(p, func(_ string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if entry.IsDir() {
				return nil
			}
			info, err := entry.Info()
			if err != nil {
				return err
			}
			total += info.Size()
			return nil
		})
		if err != nil && !os.IsNotExist(err) {
			return 0, err
		}
	}
	return total, nil
}
