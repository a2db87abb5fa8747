package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestKeyFromDetail(t *testing.T) {
	tests := []struct {
		detail string
		want   string
	}{
		{"Key (id)=(addr123) already exists.", "addr123"},
		{"Key (id)=(addr1-uatom) already exists.", "addr1-uatom"},
		{"Key (id)=(a (b)) already exists.", "a (b)"},
		{"something else", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, keyFromDetail(tt.detail), tt.detail)
	}
}

func TestDuplicateKey_LibPQ(t *testing.T) {
	err := fmt.Errorf("execute copy: %w", &pq.Error{
		Code:   "23505",
		Detail: "Key (id)=(addr123) already exists.",
	})

	key, ok := postgresDialect{}.duplicateKey(err)
	assert.True(t, ok)
	assert.Equal(t, "addr123", key)

	_, ok = postgresDialect{}.duplicateKey(&pq.Error{Code: "23503"})
	assert.False(t, ok)
}

func TestDuplicateKey_Pgx(t *testing.T) {
	err := fmt.Errorf("copy from: %w", &pgconn.PgError{
		Code:   "23505",
		Detail: "Key (id)=(cosmos1x) already exists.",
	})

	key, ok := pgxDialect{}.duplicateKey(err)
	assert.True(t, ok)
	assert.Equal(t, "cosmos1x", key)

	_, ok = pgxDialect{}.duplicateKey(errors.New("connection reset"))
	assert.False(t, ok)
}

func TestClassify(t *testing.T) {
	d := postgresDialect{}
	assert.NoError(t, classify(d, "accounts", nil))

	plain := errors.New("boom")
	assert.Same(t, plain, classify(d, "accounts", plain))

	err := classify(d, "accounts", &pq.Error{Code: "23505", Detail: "Key (id)=(x) already exists."})
	var de *DuplicateKeyError
	assert.True(t, errors.As(err, &de))
	assert.Equal(t, "accounts", de.Table)
	assert.Equal(t, "x", de.Key)
	assert.Equal(t, `duplicate primary key "x" in accounts`, de.Error())

	var pqErr *pq.Error
	assert.True(t, errors.As(err, &pqErr), "driver error must stay reachable")
}
