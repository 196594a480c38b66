package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsSerializationFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"wrapped", fmt.Errorf("failed to commit transaction: %w", &pgconn.PgError{Code: "40001"}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSerializationFailure(tt.err))
		})
	}
}

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@h:5432/n?sslmode=disable", migrateURL("postgres://u:p@h:5432/n?sslmode=disable"))
	assert.Equal(t, "pgx5://u@h/n", migrateURL("postgresql://u@h/n"))
	assert.Equal(t, "pgx5://already", migrateURL("pgx5://already"))
}

func TestWrap_ClampsRetries(t *testing.T) {
	p := Wrap(nil, -4)
	assert.Equal(t, 0, p.maxTxRetries)
}
