package store

import (
	"context"
	"fmt"
	"time"

	"rileybot/pkg/surreal"

	"github.com/rs/zerolog/log"
)

type SurrealStore struct {
	client *surreal.Client
	table  string
}

func NewSurrealStore(ctx context.Context, client *surreal.Client, table string) (*SurrealStore, error) {
	if table == "" {
		table = "posts"
	}
	if err := surreal.ValidateIdentifier(table); err != nil {
		return nil, err
	}
	s := &SurrealStore{client: client, table: table}
	if err := s.Init(ctx); err != nil {
		// the schema may already exist under a user without DEFINE rights
		log.Warn().Err(err).Str("table", table).Msg("Failed to initialize SurrealDB schema")
	}
	return s, nil
}

func (s *SurrealStore) Init(ctx context.Context) error {
	query := fmt.Sprintf(`
		DEFINE TABLE IF NOT EXISTS %[1]s SCHEMAFULL;
		DEFINE FIELD IF NOT EXISTS text ON %[1]s TYPE string;
		DEFINE FIELD IF NOT EXISTS topic ON %[1]s TYPE string;
		DEFINE FIELD IF NOT EXISTS phase ON %[1]s TYPE string;
		DEFINE FIELD IF NOT EXISTS created_at ON %[1]s TYPE int;
		DEFINE INDEX IF NOT EXISTS %[1]s_topic_idx ON %[1]s FIELDS topic;
	`, s.table)
	_, err := s.client.Query(ctx, query, nil)
	return err
}

func (s *SurrealStore) Append(ctx context.Context, p Post) error {
	query := fmt.Sprintf(`CREATE %s CONTENT {
		text: $text,
		topic: $topic,
		phase: $phase,
		created_at: $created_at
	};`, s.table)
	_, err := s.client.Query(ctx, query, map[string]interface{}{
		"text":       p.Text,
		"topic":      p.Topic,
		"phase":      p.Phase,
		"created_at": p.CreatedAt.UnixMilli(),
	})
	if err != nil {
		return &WriteError{Backend: "surreal", Err: err}
	}
	return nil
}

func (s *SurrealStore) Recent(ctx context.Context, n int) ([]Post, error) {
	if n <= 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT text, topic, phase, created_at FROM %s ORDER BY created_at DESC LIMIT $limit;`, s.table)
	rows, err := s.client.Rows(ctx, query, map[string]interface{}{"limit": n})
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}

	posts := make([]Post, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		posts = append(posts, postFromRow(rows[i]))
	}
	return posts, nil
}

func postFromRow(row map[string]interface{}) Post {
	p := Post{}
	if text, ok := row["text"].(string); ok {
		p.Text = text
	}
	if topic, ok := row["topic"].(string); ok {
		p.Topic = topic
	}
	if phase, ok := row["phase"].(string); ok {
		p.Phase = phase
	}
	p.CreatedAt = time.UnixMilli(surreal.Int64(row["created_at"])).UTC()
	return p
}

func (s *SurrealStore) Count(ctx context.Context) (int, error) {
	query := fmt.Sprintf(`SELECT count() AS total FROM %s GROUP ALL;`, s.table)
	rows, err := s.client.Rows(ctx, query, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return int(surreal.Int64(rows[0]["total"])), nil
}

func (s *SurrealStore) HasTopic(ctx context.Context, topic string) (bool, error) {
	query := fmt.Sprintf(`SELECT topic FROM %s WHERE topic = $topic LIMIT 1;`, s.table)
	rows, err := s.client.Rows(ctx, query, map[string]interface{}{"topic": topic})
	if err != nil {
		return false, fmt.Errorf("failed to check topic: %w", err)
	}
	return len(rows) > 0, nil
}

func (s *SurrealStore) Close() error {
	return s.client.Close()
}
