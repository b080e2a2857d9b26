package postgres

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrateURL(t *testing.T) {
	cases := map[string]string{
		"postgres://u:p@h:5432/db?sslmode=disable": "pgx5://u:p@h:5432/db?sslmode=disable",
		"postgresql://u@h/db":                      "pgx5://u@h/db",
		"pgx5://u@h/db":                            "pgx5://u@h/db",
	}
	for in, want := range cases {
		t.Run(in, func(t *testing.T) {
			require.Equal(t, want, migrateURL(in))
		})
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	rq := require.New(t)
	entries, err := migrations.ReadDir("migrations")
	rq.NoError(err)
	rq.Len(entries, 2)
}
