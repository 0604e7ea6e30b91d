package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"rileybot/pkg/surreal"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"
)

func TestSurrealStore(t *testing.T) {
	if err := godotenv.Load("../../.env"); err != nil {
		t.Log("Warning: Error loading .env file")
	}

	host := os.Getenv("SURREAL_DB_HOST")
	user := os.Getenv("SURREAL_DB_USER")
	pass := os.Getenv("SURREAL_DB_PASS")
	if host == "" || user == "" || pass == "" {
		t.Skip("Skipping SurrealDB test: Missing environment variables")
	}

	ctx := context.Background()
	client, err := surreal.NewClient(ctx, surreal.Options{
		Host:      host,
		User:      user,
		Pass:      pass,
		Namespace: "riley_test",
		Database:  "posts_test",
	})
	require.NoError(t, err)

	// fresh table per run so the shared checks start from empty
	table := fmt.Sprintf("posts_%d", time.Now().UnixNano())
	s, err := NewSurrealStore(ctx, client, table)
	require.NoError(t, err)
	defer func() {
		_, _ = client.Query(ctx, fmt.Sprintf("REMOVE TABLE %s;", table), nil)
		s.Close()
	}()

	exerciseStore(t, s)
}
