package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/nidhogg/catcity/internal/chat"
	"github.com/nidhogg/catcity/internal/events"
)

// JournalEntry is one line of the feed archive.
type JournalEntry struct {
	Kind    string        `json:"kind"` // "message" or "event"
	Message *chat.Message `json:"message,omitempty"`
	Event   *events.Event `json:"event,omitempty"`
}

// Journal appends the feed to hourly JSONL files compressed with zstd.
type Journal struct {
	dir    string
	prefix string
	now    func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

// NewJournal writes files named <prefix>-YYYY-MM-DD-HH.jsonl.zst under dir.
func NewJournal(dir, prefix string) *Journal {
	return &Journal{dir: dir, prefix: prefix, now: time.Now}
}

func (j *Journal) Name() string { return "journal" }

func (j *Journal) RecordMessage(_ context.Context, m chat.Message) error {
	return j.write(JournalEntry{Kind: "message", Message: &m})
}

func (j *Journal) RecordEvent(_ context.Context, e events.Event) error {
	return j.write(JournalEntry{Kind: "event", Event: &e})
}

func (j *Journal) write(entry JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	hour := j.now().UTC().Format("2006-01-02-15")
	if hour != j.curHour {
		if err := j.rotateLocked(hour); err != nil {
			return fmt.Errorf("rotate journal: %w", err)
		}
	}

	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}
	if _, err := j.w.Write(b); err != nil {
		return err
	}
	if err := j.w.WriteByte('\n'); err != nil {
		return err
	}
	return j.w.Flush()
}

func (j *Journal) rotateLocked(hour string) error {
	if err := j.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(j.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	j.f = f
	j.enc = enc
	j.w = bufio.NewWriterSize(enc, 64*1024)
	j.curHour = hour
	return nil
}

func (j *Journal) closeLocked() error {
	var err error
	if j.w != nil {
		_ = j.w.Flush()
	}
	if j.enc != nil {
		err = j.enc.Close()
		j.enc = nil
	}
	if j.f != nil {
		_ = j.f.Close()
		j.f = nil
	}
	j.w = nil
	j.curHour = ""
	return err
}

func (j *Journal) pathForHour(hour string) string {
	return filepath.Join(j.dir, fmt.Sprintf("%s-%s.jsonl.zst", j.prefix, hour))
}

// Close finishes the current frame so the file is readable.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.closeLocked()
}

// ReadJournal decodes every entry of one archive file.
func ReadJournal(path string) ([]JournalEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	var out []JournalEntry
	jd := json.NewDecoder(dec)
	for {
		var e JournalEntry
		if err := jd.Decode(&e); err == io.EOF {
			break
		} else if err != nil {
			return out, fmt.Errorf("decode journal: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}
