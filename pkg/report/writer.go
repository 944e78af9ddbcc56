package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Writer persists run records and keeps report.json in sync.
// It is safe for concurrent use.
type Writer struct {
	mu        sync.Mutex
	outputDir string
	index     *Index
}

// NewWriter opens outputDir, loading an existing index if present.
func NewWriter(outputDir string) (*Writer, error) {
	if err := ensureDir(filepath.Join(outputDir, "runs")); err != nil {
		return nil, fmt.Errorf("create runs dir: %w", err)
	}
	index, err := readIndex(outputDir)
	if os.IsNotExist(err) {
		index = &Index{Version: Version, Status: StatusPassed}
	} else if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	return &Writer{outputDir: outputDir, index: index}, nil
}

// Write stores rec and updates the index. A record with an existing id
// replaces the earlier entry.
func (w *Writer) Write(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	dataFile := filepath.Join("runs", rec.ID+".json")
	if err := atomicWriteJSON(filepath.Join(w.outputDir, dataFile), rec); err != nil {
		return fmt.Errorf("write run %s: %w", rec.ID, err)
	}

	entry := RunEntry{
		ID:       rec.ID,
		Name:     rec.Name,
		DataFile: dataFile,
		Status:   rec.Status,
		Duration: rec.Duration,
	}
	if rec.Error != nil {
		msg := rec.Error.Message
		entry.Error = &msg
	}

	replaced := false
	for i := range w.index.Runs {
		if w.index.Runs[i].ID == rec.ID {
			w.index.Runs[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		w.index.Runs = append(w.index.Runs, entry)
	}

	w.index.UpdateSeq++
	w.index.LastUpdated = time.Now()
	w.index.Summary = w.computeSummary()
	w.index.Status = w.computeRunStatus()

	return atomicWriteJSON(filepath.Join(w.outputDir, "report.json"), w.index)
}

// Index returns a copy of the current index.
func (w *Writer) Index() Index {
	w.mu.Lock()
	defer w.mu.Unlock()
	idx := *w.index
	idx.Runs = append([]RunEntry(nil), w.index.Runs...)
	return idx
}

func (w *Writer) computeSummary() Summary {
	var s Summary
	for _, r := range w.index.Runs {
		s.Total++
		switch r.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		}
	}
	return s
}

func (w *Writer) computeRunStatus() Status {
	for _, r := range w.index.Runs {
		if !r.Status.IsTerminal() {
			return StatusRunning
		}
	}
	for _, r := range w.index.Runs {
		if r.Status == StatusFailed {
			return StatusFailed
		}
	}
	return StatusPassed
}

// ReadReport loads the index and every run record it lists.
func ReadReport(outputDir string) (*Index, []Record, error) {
	index, err := readIndex(outputDir)
	if err != nil {
		return nil, nil, err
	}
	records := make([]Record, 0, len(index.Runs))
	for _, entry := range index.Runs {
		data, err := os.ReadFile(filepath.Join(outputDir, entry.DataFile))
		if err != nil {
			return nil, nil, fmt.Errorf("read run %s: %w", entry.ID, err)
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, nil, fmt.Errorf("parse run %s: %w", entry.ID, err)
		}
		records = append(records, rec)
	}
	return index, records, nil
}

func readIndex(outputDir string) (*Index, error) {
	data, err := os.ReadFile(filepath.Join(outputDir, "report.json"))
	if err != nil {
		return nil, err
	}
	var index Index
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("parse report.json: %w", err)
	}
	return &index, nil
}

// atomicWriteJSON writes v to a temp file beside path and renames it over path.
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func ensureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}
