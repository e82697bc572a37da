package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsEmbedded(t *testing.T) {
	t.Parallel()

	files, err := fs.Glob(FS, "*.sql")
	require.NoError(t, err)
	require.Len(t, files, 3)

	assert.Equal(t, []string{
		"00001_init.sql",
		"00002_participant_submissions.sql",
		"00003_entry_and_payment_constraints.sql",
	}, files)
}

func TestMigrationsHaveUpAndDown(t *testing.T) {
	t.Parallel()

	files, err := fs.Glob(FS, "*.sql")
	require.NoError(t, err)
	for _, name := range files {
		body, err := fs.ReadFile(FS, name)
		require.NoError(t, err, name)
		content := string(body)
		assert.True(t, strings.HasPrefix(content, "-- +goose Up"), "%s must start with an Up section", name)
		assert.Contains(t, content, "-- +goose Down", name)
	}
}

func TestSubmissionHistoryReplacesLegacyColumn(t *testing.T) {
	t.Parallel()

	body, err := fs.ReadFile(FS, "00002_participant_submissions.sql")
	require.NoError(t, err)
	up := strings.SplitN(string(body), "-- +goose Down", 2)[0]
	assert.Contains(t, up, "unnest(p.legacy_post_ids)")
	assert.Contains(t, up, "DROP COLUMN legacy_post_ids")
}
