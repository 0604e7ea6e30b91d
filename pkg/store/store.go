// Package store persists every accepted post. The collection is append-only;
// nothing here edits or deletes a post.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TopicIntroduction marks the persona's first post.
const TopicIntroduction = "introduction"

type Post struct {
	Text      string    `json:"text"`
	Topic     string    `json:"topic"`
	Phase     string    `json:"phase"`
	CreatedAt time.Time `json:"timestamp"`
}

// Store is an ordered, append-only collection of posts.
type Store interface {
	// Append durably records p. Failures are returned as *WriteError.
	Append(ctx context.Context, p Post) error
	// Recent returns up to n of the newest posts, oldest first.
	Recent(ctx context.Context, n int) ([]Post, error)
	Count(ctx context.Context) (int, error)
	HasTopic(ctx context.Context, topic string) (bool, error)
	Close() error
}

// WriteError means a post could not be recorded. A cycle that hits one stops
// before publishing.
type WriteError struct {
	Backend string
	Err     error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("storage write error (%s): %v", e.Backend, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

func IsWriteError(err error) bool {
	var we *WriteError
	return errors.As(err, &we)
}

// Texts returns the text of each post, in order.
func Texts(posts []Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.Text
	}
	return out
}

func tail(posts []Post, n int) []Post {
	if n <= 0 {
		return nil
	}
	if len(posts) > n {
		posts = posts[len(posts)-n:]
	}
	return posts
}
