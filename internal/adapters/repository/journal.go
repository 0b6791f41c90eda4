package repository

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/enmusubi/enmusubi/internal/domain/model"
)

// journal is an append-only JSONL log of full match records. Replay is
// last-write-wins per id, so the newest line for a record is its state.
type journal struct {
	mu sync.Mutex
	f  *os.File
}

// openJournal replays an existing journal (if any) and opens it for
// appending. A trailing partial line from a crashed writer is skipped.
func openJournal(path string) (map[string]model.Match, *journal, error) {
	replayed := make(map[string]model.Match)

	if f, err := os.Open(path); err == nil {
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			var m model.Match
			if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
				continue
			}
			if prev, ok := replayed[m.ID]; !ok || m.Version >= prev.Version {
				replayed[m.ID] = m
			}
		}
		closeErr := f.Close()
		if err := scanner.Err(); err != nil {
			return nil, nil, fmt.Errorf("replay journal: %w", err)
		}
		if closeErr != nil {
			return nil, nil, fmt.Errorf("replay journal: %w", closeErr)
		}
	} else if !os.IsNotExist(err) {
		return nil, nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return replayed, &journal{f: f}, nil
}

// append writes one record line and syncs it to disk.
func (j *journal) append(m model.Match) error {
	line, err := json.Marshal(m)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.f.Write(line); err != nil {
		return err
	}
	return j.f.Sync()
}

func (j *journal) close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.f.Close()
}
