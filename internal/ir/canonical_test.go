package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"ascii unchanged", "addr123", "addr123"},
		{"empty", "", ""},
		{"precomposed unchanged", "caf\u00e9", "caf\u00e9"},
		{"decomposed composed", "cafe\u0301", "caf\u00e9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeKey(tt.input))
		})
	}
}

func TestCompositeKey(t *testing.T) {
	assert.Equal(t, "addr123-a-token", CompositeKey("addr123", "a-token"))
	assert.Equal(t, "addr123", CompositeKey("addr123"))
	assert.Equal(t, "caf\u00e9-x", CompositeKey("cafe\u0301", "x"))
}

func TestNormalizeRow(t *testing.T) {
	row := NormalizeRow(Row{Text("caf\u00e9-a"), Text("cafe\u0301"), Text("1"), Null})
	assert.Equal(t, Row{Text("caf\u00e9-a"), Text("caf\u00e9"), Text("1"), Null}, row)
}

func TestCompositeKey_Deterministic(t *testing.T) {
	for i := 0; i < 10; i++ {
		assert.Equal(t, CompositeKey("addr456", "b-token"), CompositeKey("addr456", "b-token"))
	}
}

func TestDocumentDigest(t *testing.T) {
	a := DocumentDigest([]byte(`{"chain_id":"test"}`))
	b := DocumentDigest([]byte(`{"chain_id":"test"}`))
	c := DocumentDigest([]byte(`{"chain_id":"other"}`))

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
