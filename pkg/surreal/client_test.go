package surreal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"Valid simple", "posts", false},
		{"Valid with underscore", "created_at", false},
		{"Valid with numbers", "posts2", false},
		{"Invalid space", "my posts", true},
		{"Invalid dash", "riley-posts", true},
		{"Invalid SQL injection", "posts; DROP TABLE posts", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIdentifier(tt.input)
			assert.Equal(t, tt.wantErr, err != nil)
		})
	}
}

type fakeQueryResult struct {
	Status string
	Result interface{}
}

func TestLastResult(t *testing.T) {
	rows := []interface{}{map[string]interface{}{"text": "hi"}}
	results := []fakeQueryResult{
		{Status: "OK", Result: nil},
		{Status: "OK", Result: rows},
	}

	assert.Equal(t, rows, lastResult(&results))
	assert.Equal(t, rows, lastResult(fakeQueryResult{Result: rows}))
	assert.Equal(t, "plain", lastResult("plain"))
}

func TestToRows(t *testing.T) {
	got := toRows([]interface{}{
		map[string]interface{}{"text": "a"},
		"not a row",
		map[string]interface{}{"text": "b"},
	})
	assert.Len(t, got, 2)
	assert.Nil(t, toRows("nope"))
}

func TestInt64(t *testing.T) {
	assert.Equal(t, int64(5), Int64(float64(5)))
	assert.Equal(t, int64(5), Int64(uint64(5)))
	assert.Equal(t, int64(5), Int64(5))
	assert.Equal(t, int64(0), Int64("5"))
}

func TestNormalizeHost(t *testing.T) {
	assert.Equal(t, "wss://db.example.com/rpc", NormalizeHost("db.example.com"))
	assert.Equal(t, "ws://localhost:8000/rpc", NormalizeHost("ws://localhost:8000/rpc"))
	assert.Equal(t, "https://db.example.com", NormalizeHost("https://db.example.com"))
}
