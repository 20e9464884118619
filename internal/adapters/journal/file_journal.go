package journal

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/reedan88/Isaias/internal/ports"
)

const recordHeaderLen = 13

const (
	kindJob    byte = 1
	kindCommit byte = 2
)

// ErrUnknownJob is returned when committing an id that was never appended.
var ErrUnknownJob = errors.New("unknown job id")

// FileJournal is an append-only log of issued jobs. A commit is its own
// record, so jobs can finish in any order.
type FileJournal struct {
	mu        sync.Mutex
	path      string
	file      *os.File
	writer    *bufio.Writer
	nextID    ports.JobID
	jobs      map[ports.JobID]struct{}
	committed map[ports.JobID]struct{}
	sizeBytes int64
}

func NewFileJournal(dir string) (*FileJournal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "jobs.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	j := &FileJournal{
		path:      path,
		file:      f,
		writer:    bufio.NewWriterSize(f, 64<<10),
		jobs:      make(map[ports.JobID]struct{}),
		committed: make(map[ports.JobID]struct{}),
	}
	if err := j.scanExisting(); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, err
	}
	return j, nil
}

// scanExisting rebuilds the job and commit sets, dropping a torn tail.
func (j *FileJournal) scanExisting() error {
	rf, err := os.Open(j.path)
	if err != nil {
		return err
	}
	defer rf.Close()

	r := bufio.NewReader(rf)
	var offset int64
	for {
		id, kind, body, n, err := readRecord(r)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return fmt.Errorf("journal scan: %w", err)
		}
		switch kind {
		case kindJob:
			var rec ports.JobRecord
			if err := json.Unmarshal(body, &rec); err != nil {
				return fmt.Errorf("journal scan: corrupt job %d: %w", id, err)
			}
			j.jobs[id] = struct{}{}
			if id > j.nextID {
				j.nextID = id
			}
		case kindCommit:
			j.committed[id] = struct{}{}
		default:
			return fmt.Errorf("journal scan: unknown record kind %d at offset %d", kind, offset)
		}
		offset += n
	}

	if err := j.file.Truncate(offset); err != nil {
		return err
	}
	j.sizeBytes = offset
	return nil
}

// record format: [8 bytes id][1 byte kind][4 bytes len][len bytes json]
func readRecord(r io.Reader) (ports.JobID, byte, []byte, int64, error) {
	var hdr [recordHeaderLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, 0, nil, 0, err
	}
	id := ports.JobID(binary.BigEndian.Uint64(hdr[0:8]))
	kind := hdr[8]
	l := binary.BigEndian.Uint32(hdr[9:13])

	body := make([]byte, l)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return 0, 0, nil, 0, err
	}
	return id, kind, body, int64(recordHeaderLen) + int64(l), nil
}

func (j *FileJournal) writeLocked(id ports.JobID, kind byte, body []byte) error {
	var hdr [recordHeaderLen]byte
	binary.BigEndian.PutUint64(hdr[0:8], uint64(id))
	hdr[8] = kind
	binary.BigEndian.PutUint32(hdr[9:13], uint32(len(body)))

	if _, err := j.writer.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := j.writer.Write(body); err != nil {
		return err
	}
	if err := j.writer.Flush(); err != nil {
		return err
	}
	j.sizeBytes += int64(len(hdr) + len(body))
	return j.file.Sync()
}

func (j *FileJournal) Append(rec ports.JobRecord) (ports.JobID, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	b, err := json.Marshal(rec)
	if err != nil {
		return 0, err
	}
	id := j.nextID + 1
	if err := j.writeLocked(id, kindJob, b); err != nil {
		return 0, err
	}
	j.nextID = id
	j.jobs[id] = struct{}{}
	return id, nil
}

// Iterate calls fn for every job with id >= from, in append order. fn must
// not call back into the journal.
func (j *FileJournal) Iterate(from ports.JobID, fn func(id ports.JobID, rec ports.JobRecord, committed bool) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.writer.Flush(); err != nil {
		return err
	}
	f, err := os.Open(j.path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for {
		id, kind, body, _, err := readRecord(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("corrupt journal: %w", err)
		}
		if kind != kindJob || id < from {
			continue
		}
		var rec ports.JobRecord
		if err := json.Unmarshal(body, &rec); err != nil {
			return fmt.Errorf("corrupt journal entry %d: %w", id, err)
		}
		_, done := j.committed[id]
		if err := fn(id, rec, done); err != nil {
			return err
		}
	}
}

// Commit marks a job finished. Committing twice is a no-op.
func (j *FileJournal) Commit(id ports.JobID) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if _, ok := j.jobs[id]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownJob, id)
	}
	if _, ok := j.committed[id]; ok {
		return nil
	}
	if err := j.writeLocked(id, kindCommit, nil); err != nil {
		return err
	}
	j.committed[id] = struct{}{}
	return nil
}

func (j *FileJournal) Stats() ports.JournalStats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return ports.JournalStats{
		Pending:        len(j.jobs) - len(j.committed),
		LatestAppended: j.nextID,
		SizeBytes:      j.sizeBytes,
	}
}

func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.writer.Flush(); err != nil {
		j.file.Close()
		return err
	}
	return j.file.Close()
}

var _ ports.Journal = (*FileJournal)(nil)
