package auth_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitetrack/internal/domain"
	"sitetrack/internal/domain/auth"
)

func TestUserListQuery(t *testing.T) {
	active := true

	tests := []struct {
		name   string
		filter auth.UserFilter
		where  string
		args   []any
	}{
		{"all", auth.UserFilter{}, "", nil},
		{
			name:   "search",
			filter: auth.UserFilter{ListFilter: domain.ListFilter{Search: "site"}},
			where:  "WHERE (email ILIKE $1 OR full_name ILIKE $2)",
			args:   []any{"%site%", "%site%"},
		},
		{
			name:   "role and active",
			filter: auth.UserFilter{Role: auth.RoleManager, IsActive: &active},
			where:  "WHERE role = $1 AND is_active = $2",
			args:   []any{auth.RoleManager, true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := userListQuery(tt.filter).ToSql()
			require.NoError(t, err)
			assert.Contains(t, sql, "FROM users")
			assert.NotContains(t, sql, "password_hash =")
			if tt.where == "" {
				assert.NotContains(t, sql, "WHERE")
				assert.Empty(t, args)
				return
			}
			assert.Contains(t, sql, tt.where)
			assert.Equal(t, tt.args, args)
		})
	}
}
