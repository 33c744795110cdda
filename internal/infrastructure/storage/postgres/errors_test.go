package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"sitetrack/internal/core/apperror"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"no rows", pgx.ErrNoRows, apperror.CodeNotFound},
		{"unique", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}, apperror.CodeDuplicate},
		{"foreign key", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23503"}), apperror.CodeConflict},
		{"check", &pgconn.PgError{Code: "23514"}, apperror.CodeValidation},
		{"serialization", &pgconn.PgError{Code: "40001"}, apperror.CodeConcurrentModification},
		{"timeout", context.DeadlineExceeded, apperror.CodeDatabase},
		{"other", errors.New("connection reset"), apperror.CodeDatabase},
		{"app error passes", apperror.NewInsufficientStock("CEM1", "200", "150"), apperror.CodeInsufficientStock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err, "material_batch")
			assert.True(t, apperror.HasCode(got, tt.code), "got %v", got)
		})
	}

	assert.NoError(t, MapError(nil, "x"))
}

func TestParseOrderBy(t *testing.T) {
	allowed := []string{"code", "name", "created_at"}

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "name ASC", false},
		{"code", "code ASC", false},
		{"+code", "code ASC", false},
		{"-created_at", "created_at DESC", false},
		{"password_hash", "", true},
		{"-", "", true},
		{"name; DROP TABLE users", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOrderBy(tt.in, "name ASC", allowed...)
			if tt.wantErr {
				assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
