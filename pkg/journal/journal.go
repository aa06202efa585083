package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// CycleRecord captures one end-to-end ingestion cycle for audit and
// debugging of upstream behaviour.
type CycleRecord struct {
	Timestamp    time.Time         `json:"timestamp"`
	CycleNumber  int               `json:"cycle_number"`
	Provenance   string            `json:"provenance,omitempty"`
	Prices       map[string]string `json:"prices,omitempty"`
	Stored       int               `json:"stored"`
	Skipped      bool              `json:"skipped,omitempty"`
	Success      bool              `json:"success"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Elapsed      string            `json:"elapsed,omitempty"`
}

// Writer persists cycle records to a directory as JSON files (journal style).
// Safe for concurrent use.
type Writer struct {
	dir   string
	mu    sync.Mutex
	seq   int
	nowFn func() time.Time
}

// NewWriter constructs a journal writer.
func NewWriter(dir string) *Writer {
	if dir == "" {
		dir = "journal"
	}
	_ = os.MkdirAll(dir, 0o755)
	return &Writer{dir: dir, nowFn: time.Now}
}

// WriteCycle writes a cycle record to a timestamped JSON file. The file
// sequence is the writer's own monotonic counter; a caller-assigned
// CycleNumber is preserved, a zero one is filled from the sequence.
func (w *Writer) WriteCycle(rec *CycleRecord) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("journal: nil record")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = w.nowFn()
	}
	w.seq++
	if rec.CycleNumber == 0 {
		rec.CycleNumber = w.seq
	}
	name := fmt.Sprintf("cycle_%s_%05d.json", rec.Timestamp.UTC().Format("20060102_150405"), w.seq)
	path := filepath.Join(w.dir, name)
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
