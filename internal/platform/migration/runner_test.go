// Copyright (c) 2026 KiwiTrace. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package migration

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPgx5DSN(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"postgres://u:p@localhost:5432/db", "pgx5://u:p@localhost:5432/db"},
		{"postgresql://u:p@localhost/db", "pgx5://u:p@localhost/db"},
		{"pgx5://u:p@localhost/db", "pgx5://u:p@localhost/db"},
		{"host=localhost dbname=db", "host=localhost dbname=db"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, pgx5DSN(tt.in))
	}
}

func TestFiles_Embedded(t *testing.T) {
	names, err := Files()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"000001_create_account.down.sql",
		"000001_create_account.up.sql",
		"000002_create_mailoutbox.down.sql",
		"000002_create_mailoutbox.up.sql",
	}, names)
	assert.NoError(t, checkPaired(migrationFS))
}

func TestCheckPaired(t *testing.T) {
	unpaired := fstest.MapFS{
		"migrations/000001_create_account.up.sql":   {Data: []byte("CREATE TABLE x ();")},
		"migrations/000001_create_account.down.sql": {Data: []byte("DROP TABLE x;")},
		"migrations/000002_add_index.up.sql":        {Data: []byte("CREATE INDEX i ON x ();")},
	}
	assert.ErrorContains(t, checkPaired(unpaired), "000002_add_index")

	stray := fstest.MapFS{
		"migrations/README.md": {Data: []byte("notes")},
	}
	assert.ErrorContains(t, checkPaired(stray), "migration_unexpected_file")
}
