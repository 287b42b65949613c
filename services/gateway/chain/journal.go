// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package chain

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// =============================================================================
// Journal
// =============================================================================

// Journal persists chain records as one JSON line per record, append-only.
//
// # Description
//
// Writes are line-buffered through the OS page cache; no fsync is issued.
// The file format is the canonical Record encoding, so a journal can be
// verified offline without the process that wrote it.
//
// An erasure is recorded as a second line with the same hash and the marker
// content; replay applies the newest line per hash, keeping the original
// chain position.
//
// # Thread Safety
//
// WriteRecord is safe for concurrent use, though in practice it is only
// called from inside a Log's append critical section.
type Journal struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// OpenJournal opens (creating if needed) a journal file for appending.
func OpenJournal(path string) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	return &Journal{file: f, path: path}, nil
}

// WriteRecord appends one record as a JSON line.
func (j *Journal) WriteRecord(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal journal record: %w", err)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write journal line: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}

// Path returns the journal file path.
func (j *Journal) Path() string {
	return j.path
}

// =============================================================================
// Replay
// =============================================================================

// ReadJournal loads every valid record line from r.
//
// # Description
//
// Lines that fail to parse are tolerated only at the tail of the file (a
// crash mid-write leaves at most one partial line); an invalid line followed
// by valid lines indicates corruption and is reported. Duplicate hashes are
// collapsed to the newest line in the original chain position, which is how
// erasures round-trip.
//
// # Outputs
//
//   - []Record: records in chain order.
//   - error: non-nil on read failure or mid-file corruption.
func ReadJournal(r io.Reader) ([]Record, error) {
	var (
		records []Record
		index   = map[string]int{}
		badLine = -1
		lineNo  int
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil || rec.Hash == "" {
			badLine = lineNo
			continue
		}
		if badLine >= 0 {
			return nil, fmt.Errorf("journal corrupt: invalid line %d precedes valid records", badLine)
		}
		if i, ok := index[rec.Hash]; ok {
			records[i] = rec
			continue
		}
		index[rec.Hash] = len(records)
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	if badLine >= 0 {
		slog.Warn("journal ends with a partial line; dropping it", "line", badLine)
	}
	return records, nil
}

// OpenLog rehydrates a chain from a journal file and attaches the journal
// for subsequent appends.
//
// A missing file yields an empty chain with a fresh journal. The last valid
// record's hash and timestamp become the new chain head.
func OpenLog(path string, opts ...Option) (*Log, error) {
	var records []Record
	if f, err := os.Open(path); err == nil {
		records, err = ReadJournal(f)
		_ = f.Close()
		if err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}

	j, err := OpenJournal(path)
	if err != nil {
		return nil, err
	}

	l := NewLog(append(opts, WithJournal(j))...)
	l.records = records
	if n := len(records); n > 0 {
		l.lastTS = records[n-1].TimestampNS
	}
	return l, nil
}
