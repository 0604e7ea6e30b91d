package surreal

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

type Client struct {
	db *surrealdb.DB
}

type Options struct {
	Host      string
	User      string
	Pass      string
	Namespace string
	Database  string
}

// identifierRegex ensures that table names and fields only contain alphanumeric characters and underscores
var identifierRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

func ValidateIdentifier(s string) error {
	if !identifierRegex.MatchString(s) {
		return fmt.Errorf("invalid identifier: %s", s)
	}
	return nil
}

// NormalizeHost turns a bare "host:port" into a websocket RPC URL.
func NormalizeHost(host string) string {
	for _, scheme := range []string{"ws://", "wss://", "http://", "https://"} {
		if strings.HasPrefix(host, scheme) {
			return host
		}
	}
	return "wss://" + strings.TrimSuffix(host, "/") + "/rpc"
}

func NewClient(ctx context.Context, opts Options) (*Client, error) {
	db, err := surrealdb.New(NormalizeHost(opts.Host))
	if err != nil {
		return nil, fmt.Errorf("failed to create surrealdb client: %w", err)
	}

	if _, err = db.SignIn(ctx, map[string]interface{}{
		"user": opts.User,
		"pass": opts.Pass,
	}); err != nil {
		return nil, fmt.Errorf("failed to signin to surrealdb: %w", err)
	}

	if err = db.Use(ctx, opts.Namespace, opts.Database); err != nil {
		return nil, fmt.Errorf("failed to use surrealdb namespace/database: %w", err)
	}

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close(context.Background())
}

// Query runs sql and returns the result of its last statement.
func (c *Client) Query(ctx context.Context, sql string, vars map[string]interface{}) (interface{}, error) {
	if vars == nil {
		vars = map[string]interface{}{}
	}
	result, err := surrealdb.Query[interface{}](ctx, c.db, sql, vars)
	if err != nil {
		return nil, err
	}
	return lastResult(result), nil
}

// Rows runs sql and returns the rows of its last statement as maps. Anything
// that is not an object row is dropped.
func (c *Client) Rows(ctx context.Context, sql string, vars map[string]interface{}) ([]map[string]interface{}, error) {
	result, err := c.Query(ctx, sql, vars)
	if err != nil {
		return nil, err
	}
	return toRows(result), nil
}

// lastResult unwraps *[]QueryResult -> Result of the final statement.
func lastResult(result interface{}) interface{} {
	rv := reflect.ValueOf(result)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Struct:
		if f := rv.FieldByName("Result"); f.IsValid() {
			return f.Interface()
		}
	case reflect.Slice:
		if rv.Len() > 0 {
			last := rv.Index(rv.Len() - 1)
			if last.Kind() == reflect.Struct {
				if f := last.FieldByName("Result"); f.IsValid() {
					return f.Interface()
				}
			}
		}
	}
	return result
}

func toRows(result interface{}) []map[string]interface{} {
	items, ok := result.([]interface{})
	if !ok {
		return nil
	}
	rows := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]interface{}); ok {
			rows = append(rows, m)
		}
	}
	return rows
}

// Int64 reads a numeric column that may decode as any integer or float type.
func Int64(v interface{}) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case int64:
		return t
	case uint64:
		return int64(t)
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case uint32:
		return int64(t)
	}
	return 0
}
