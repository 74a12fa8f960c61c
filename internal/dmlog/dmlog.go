// Package dmlog keeps the append-only log of direct messages received by the
// bot. The log is a single JSON array rewritten on every append; a single
// writer goroutine owns the file so concurrent appends never interleave.
package dmlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"guildkeeper/internal/utils"

	"go.uber.org/zap"
)

// TimestampLayout matches JavaScript's Date.toISOString output.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

var (
	ErrClosed    = errors.New("dm log closed")
	ErrQueueFull = errors.New("dm log queue full")
)

const queueSize = 64

type Entry struct {
	Timestamp string `json:"timestamp"`
	Author    string `json:"author"`
	Content   string `json:"content"`
}

func NewEntry(at time.Time, author, content string) Entry {
	return Entry{Timestamp: at.UTC().Format(TimestampLayout), Author: author, Content: content}
}

type request struct {
	entry  Entry
	result chan error
}

type Store struct {
	path   string
	logger *zap.Logger
	queue  chan request
	done   chan struct{}
	closed chan struct{}
	now    func() time.Time

	mu       sync.RWMutex
	isClosed bool
}

func Open(path string, logger *zap.Logger) *Store {
	s := newStore(path, logger, queueSize)
	go s.run()
	return s
}

func newStore(path string, logger *zap.Logger, size int) *Store {
	return &Store{
		path:   path,
		logger: logger,
		queue:  make(chan request, size),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
		now:    time.Now,
	}
}

func (s *Store) Path() string { return s.path }

// Submit never blocks. The returned channel receives the outcome of the write
// exactly once; ErrQueueFull when the writer is too far behind.
func (s *Store) Submit(entry Entry) <-chan error {
	result := make(chan error, 1)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.isClosed {
		result <- ErrClosed
		return result
	}
	select {
	case s.queue <- request{entry: entry, result: result}:
	default:
		result <- ErrQueueFull
	}
	return result
}

func (s *Store) Append(ctx context.Context, entry Entry) error {
	result := make(chan error, 1)
	if err := s.enqueue(ctx, request{entry: entry, result: result}); err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) enqueue(ctx context.Context, req request) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.isClosed {
		return ErrClosed
	}
	select {
	case s.queue <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) Close() {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return
	}
	s.isClosed = true
	close(s.closed)
	s.mu.Unlock()
	<-s.done
}

func (s *Store) run() {
	defer close(s.done)
	for {
		select {
		case req := <-s.queue:
			req.result <- s.write(req.entry)
		case <-s.closed:
			for {
				select {
				case req := <-s.queue:
					req.result <- s.write(req.entry)
				default:
					return
				}
			}
		}
	}
}

func (s *Store) write(entry Entry) error {
	entries, err := s.read()
	if err != nil {
		s.logger.Error("dm log unreadable, entry dropped", zap.String("path", s.path), zap.Error(err))
		return err
	}
	entries = append(entries, entry)
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := utils.WriteFileAtomic(s.path, data); err != nil {
		s.logger.Error("dm log write failed", zap.String("path", s.path), zap.Error(err))
		return fmt.Errorf("write dm log: %w", err)
	}
	return nil
}

// read loads the current log. A corrupt file is moved aside so its content
// can be recovered by hand, and the log restarts empty.
func (s *Store) read() ([]Entry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	entries, err := Decode(data)
	if err == nil {
		return entries, nil
	}

	quarantine := s.path + ".corrupt-" + strconv.FormatInt(s.now().UnixNano(), 10)
	if renameErr := os.Rename(s.path, quarantine); renameErr != nil {
		return nil, fmt.Errorf("quarantine corrupt dm log: %w", renameErr)
	}
	s.logger.Warn("dm log corrupt, moved aside", zap.String("path", s.path), zap.String("quarantine", quarantine), zap.Error(err))
	return nil, nil
}

func ReadFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Entry{}, nil
		}
		return nil, err
	}
	return Decode(data)
}

func Decode(data []byte) ([]Entry, error) {
	entries := []Entry{}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode dm log: %w", err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}
