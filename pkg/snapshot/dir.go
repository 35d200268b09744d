package snapshot

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	apperrors "github.com/matzehuels/shelfmark/pkg/errors"
)

// DefaultDirName is the directory created under the system temp dir.
const DefaultDirName = "gramedia_datasets"

// DefaultDir returns the default local snapshot directory.
func DefaultDir() string {
	return filepath.Join(os.TempDir(), DefaultDirName)
}

// Dir is the local snapshot directory.
type Dir struct {
	path string
}

// NewDir returns a Dir rooted at path. An empty path uses [DefaultDir].
// The directory is created on first write.
func NewDir(path string) *Dir {
	if path == "" {
		path = DefaultDir()
	}
	return &Dir{path: path}
}

// Path returns the directory root.
func (d *Dir) Path() string { return d.path }

// File returns the full path of a snapshot file.
func (d *Dir) File(filename string) string { return filepath.Join(d.path, filename) }

// Read returns the snapshot bytes, or ok=false if the file does not exist.
func (d *Dir) Read(filename string) (data []byte, ok bool, err error) {
	if err := apperrors.ValidateFilename(filename); err != nil {
		return nil, false, err
	}
	data, err = os.ReadFile(d.File(filename))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Write stores data under filename. The data is written to a temporary file
// in the same directory and renamed into place; concurrent writers of the
// same snapshot race harmlessly and the last rename wins.
func (d *Dir) Write(filename string, data []byte) error {
	if err := apperrors.ValidateFilename(filename); err != nil {
		return err
	}
	if err := os.MkdirAll(d.path, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(d.path, "."+filename+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), d.File(filename))
}

// Remove deletes a snapshot. Removing a missing snapshot is not an error.
func (d *Dir) Remove(filename string) error {
	if err := apperrors.ValidateFilename(filename); err != nil {
		return err
	}
	err := os.Remove(d.File(filename))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Info describes a stored snapshot.
type Info struct {
	Filename string
	Size     int64
	ModTime  time.Time
}

// List returns the snapshots present in the directory, sorted by filename.
// Temporary files from in-progress writes are skipped.
func (d *Dir) List() ([]Info, error) {
	entries, err := os.ReadDir(d.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []Info
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Info{Filename: e.Name(), Size: fi.Size(), ModTime: fi.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out, nil
}

// Clear removes every snapshot in the directory and returns how many were
// removed.
func (d *Dir) Clear() (int, error) {
	infos, err := d.List()
	if err != nil {
		return 0, err
	}
	for i, info := range infos {
		if err := d.Remove(info.Filename); err != nil {
			return i, err
		}
	}
	return len(infos), nil
}
