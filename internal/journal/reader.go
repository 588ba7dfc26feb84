package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/vovakirdan/cloudsync/internal/protocol"
)

// Entry is one decoded journal line.
type Entry struct {
	Tick uint64
	Msg  protocol.Message
}

// Reader iterates a journal file in write order.
type Reader struct {
	f    *os.File
	dec  *zstd.Decoder
	sc   *bufio.Scanner
	line int
}

// Open opens a journal for reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("journal: cannot open %s: %w", path, err)
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("journal: cannot create decoder: %w", err)
	}
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	return &Reader{f: f, dec: dec, sc: sc}, nil
}

// Next returns the next entry, or io.EOF after the last one.
func (r *Reader) Next() (Entry, error) {
	for r.sc.Scan() {
		r.line++
		raw := r.sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var l line
		if err := json.Unmarshal(raw, &l); err != nil {
			return Entry{}, fmt.Errorf("journal: line %d: %w", r.line, err)
		}
		msg, err := protocol.Unmarshal(l.Msg)
		if err != nil {
			return Entry{}, fmt.Errorf("journal: line %d: %w", r.line, err)
		}
		return Entry{Tick: l.Tick, Msg: msg}, nil
	}
	if err := r.sc.Err(); err != nil {
		return Entry{}, fmt.Errorf("journal: line %d: %w", r.line+1, err)
	}
	return Entry{}, io.EOF
}

// Close releases the file.
func (r *Reader) Close() error {
	r.dec.Close()
	return r.f.Close()
}

// Replay calls fn for every entry of the journal at path. Entries after
// toTick are skipped when toTick is non-zero.
func Replay(path string, toTick uint64, fn func(Entry)) (int, error) {
	r, err := Open(path)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	n := 0
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if toTick != 0 && e.Tick > toTick {
			return n, nil
		}
		fn(e)
		n++
	}
}
