package devserver

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var errInvalidPath = errors.New("invalid path")

// storage maps client save paths onto a directory tree under root.
type storage struct {
	root string
}

// resolve joins the client path under root. Paths that try to climb out
// with ".." are rejected.
func (s storage) resolve(parts ...string) (string, error) {
	rel := filepath.Clean(filepath.Join(parts...))
	if strings.Contains(rel, "..") {
		return "", errInvalidPath
	}
	return filepath.Join(s.root, rel), nil
}

// rel returns p relative to root with forward slashes.
func (s storage) rel(p string) string {
	r, err := filepath.Rel(s.root, p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(r)
}

// writeVideo writes a placeholder clip for trial name into dir and returns
// its path. Recording the same name twice overwrites the earlier clip.
func (s storage) writeVideo(dir, name string, payload []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create save dir: %w", err)
	}
	file := name
	if !strings.HasSuffix(strings.ToLower(file), ".mp4") {
		file += ".mp4"
	}
	if strings.ContainsAny(file, `/\`) {
		return "", errInvalidPath
	}
	p := filepath.Join(dir, file)
	if err := os.WriteFile(p, payload, 0o644); err != nil {
		return "", fmt.Errorf("write video: %w", err)
	}
	return p, nil
}

// listVideos returns the .mp4 files directly inside dir, oldest first. A
// missing dir lists nothing.
func (s storage) listVideos(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, err
	}
	type clip struct {
		name string
		mod  int64
	}
	var clips []clip
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".mp4") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		clips = append(clips, clip{name: e.Name(), mod: info.ModTime().UnixNano()})
	}
	sort.SliceStable(clips, func(i, j int) bool {
		if clips[i].mod != clips[j].mod {
			return clips[i].mod < clips[j].mod
		}
		return clips[i].name < clips[j].name
	})
	out := make([]string, 0, len(clips))
	for _, c := range clips {
		out = append(out, c.name)
	}
	return out, nil
}

// writeCSV replaces path with header followed by rows.
func writeCSV(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return f.Close()
}

// readCSV returns the rows of path without its header. A missing file has
// no rows.
func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close() //nolint:errcheck
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[1:], nil
}
