package worker

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// resolve maps a declared MeshCore path to a real filesystem path: the
// "/sd/" prefix routes to removable storage, everything else to internal
// flash (spec §4.7).
func (w *Worker) resolve(declared string) string {
	root := w.dataDir
	rel := declared
	if strings.HasPrefix(declared, "/sd/") {
		root = w.sdDir
		rel = strings.TrimPrefix(declared, "/sd/")
	} else {
		rel = strings.TrimPrefix(rel, "/")
	}
	return filepath.Join(root, filepath.Clean(string(filepath.Separator)+rel))
}

func (w *Worker) read(path string) ([]byte, error) {
	full := w.resolve(path)
	info, err := os.Stat(full)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("file %s exceeds max size %d bytes", path, maxFileSize)
	}
	return os.ReadFile(full)
}

func (w *Worker) readBytes(path string, offset, length int) ([]byte, error) {
	full := w.resolve(path)
	f, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if int64(offset) >= info.Size() {
		return []byte{}, nil
	}
	remaining := info.Size() - int64(offset)
	if int64(length) > remaining {
		length = int(remaining)
	}

	buf := make([]byte, length)
	n, err := f.ReadAt(buf, int64(offset))
	if err != nil && n == 0 {
		return nil, fmt.Errorf("read %s at %d: %w", path, offset, err)
	}
	return buf[:n], nil
}

func (w *Worker) write(path string, data []byte) error {
	full := w.resolve(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("mkdir for %s: %w", path, err)
	}
	return os.WriteFile(full, data, 0o644)
}

func (w *Worker) writeBytes(path string, offset int, data []byte) error {
	full := w.resolve(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("mkdir for %s: %w", path, err)
	}
	f, err := os.OpenFile(full, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.WriteAt(data, int64(offset)); err != nil {
		return fmt.Errorf("write %s at %d: %w", path, offset, err)
	}
	return nil
}

func (w *Worker) append(path string, data []byte) error {
	full := w.resolve(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("mkdir for %s: %w", path, err)
	}
	f, err := os.OpenFile(full, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	_, err = f.Write(data)
	return err
}

func (w *Worker) exists(path string) bool {
	_, err := os.Stat(w.resolve(path))
	return err == nil
}

func (w *Worker) jsonRead(path string) ([]byte, error) {
	data, err := w.read(path)
	if err != nil {
		return nil, err
	}
	if len(data) > maxJSONBytes {
		return nil, fmt.Errorf("json document %s exceeds %d bytes", path, maxJSONBytes)
	}
	return data, nil
}

func (w *Worker) jsonWrite(path string, text []byte) error {
	if len(text) > maxJSONBytes {
		return fmt.Errorf("json document %s exceeds %d bytes", path, maxJSONBytes)
	}
	return w.write(path, text)
}
