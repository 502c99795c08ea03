package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Watermark persists the viewer's last-read position as an epoch-second
// timestamp. Writes go through a temp file and rename so a crash never
// leaves a torn file behind.
type Watermark struct {
	mu   sync.Mutex
	path string
	last int64
}

type watermarkFile struct {
	LastSeen int64 `json:"lastSeen"` // epoch seconds
}

// OpenWatermark loads the stored position. A missing file means
// everything is unread, which is the right first-run behavior.
func OpenWatermark(path string) (*Watermark, error) {
	w := &Watermark{path: path}

	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return w, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read watermark %s: %w", path, err)
	}

	var f watermarkFile
	if err = json.Unmarshal(b, &f); err != nil {
		// corrupt file degrades to all-unread instead of failing boot
		return w, nil
	}
	w.last = f.LastSeen
	return w, nil
}

// Last returns the stored position, zero when nothing was read yet.
func (w *Watermark) Last() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// Advance moves the position forward and persists it. Going backwards
// is ignored, positions only grow.
func (w *Watermark) Advance(ts int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if ts <= w.last {
		return nil
	}

	if err := w.persist(ts); err != nil {
		return err
	}
	w.last = ts
	return nil
}

func (w *Watermark) persist(ts int64) error {
	b, err := json.Marshal(watermarkFile{LastSeen: ts})
	if err != nil {
		return err
	}

	dir := filepath.Dir(w.path)
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create watermark dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".watermark-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err = tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	if err = os.Rename(tmpName, w.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace watermark: %w", err)
	}
	return nil
}
