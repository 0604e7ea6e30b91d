package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// FileStore keeps one JSON object per line so the history can be read (and
// fixed) by hand. Malformed lines are skipped on read.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Append(ctx context.Context, p Post) error {
	if err := ctx.Err(); err != nil {
		return &WriteError{Backend: "file", Err: err}
	}

	line, err := json.Marshal(p)
	if err != nil {
		return &WriteError{Backend: "file", Err: err}
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return &WriteError{Backend: "file", Err: err}
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return &WriteError{Backend: "file", Err: err}
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return &WriteError{Backend: "file", Err: err}
	}
	if err := f.Close(); err != nil {
		return &WriteError{Backend: "file", Err: err}
	}
	return nil
}

func (s *FileStore) readAll() ([]Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer f.Close()

	var posts []Post
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var p Post
		if err := json.Unmarshal(raw, &p); err != nil {
			log.Warn().Err(err).Str("path", s.path).Int("line", lineNo).Msg("Skipping malformed post")
			continue
		}
		posts = append(posts, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read store: %w", err)
	}
	return posts, nil
}

func (s *FileStore) Recent(ctx context.Context, n int) ([]Post, error) {
	posts, err := s.readAll()
	if err != nil {
		return nil, err
	}
	return tail(posts, n), nil
}

func (s *FileStore) Count(ctx context.Context) (int, error) {
	posts, err := s.readAll()
	if err != nil {
		return 0, err
	}
	return len(posts), nil
}

func (s *FileStore) HasTopic(ctx context.Context, topic string) (bool, error) {
	posts, err := s.readAll()
	if err != nil {
		return false, err
	}
	for _, p := range posts {
		if p.Topic == topic {
			return true, nil
		}
	}
	return false, nil
}

func (s *FileStore) Close() error {
	return nil
}
