package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/small-frappuccino/guildpanel/pkg/document"
	"github.com/small-frappuccino/guildpanel/pkg/files"
)

func newTestSQLite(t *testing.T) (*SQLiteBackend, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guildpanel.db")
	b, err := NewSQLiteBackend(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b, path
}

func TestSQLiteBackendRoundTripAndHistory(t *testing.T) {
	ctx := context.Background()
	b, _ := newTestSQLite(t)

	_, err := b.Load(ctx, "g1")
	assert.ErrorIs(t, err, files.ErrNotFound)

	first := document.PatchAt(document.MustPath("general.prefix"), document.String("!"))
	second := document.DeepMerge(first, document.PatchAt(document.MustPath("tickets.authorizedRoles"), document.Strings("1", "2")))
	require.NoError(t, b.Save(ctx, "g1", first))
	require.NoError(t, b.Save(ctx, "g1", second))

	loaded, err := b.Load(ctx, "g1")
	require.NoError(t, err)
	assert.True(t, document.MapsEqual(second, loaded))

	hist, err := b.History(ctx, "g1", 10)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, int64(2), hist[0].Revision)
	assert.True(t, document.MapsEqual(first, hist[1].Document))

	scopes, err := b.Scopes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"g1"}, scopes)
}

func TestSQLiteBackendBehindConfigStore(t *testing.T) {
	ctx := context.Background()
	b, path := newTestSQLite(t)
	store := files.NewConfigStore(b)

	_, err := store.Apply(ctx, "g1", document.PatchAt(document.MustPath("tickets.ticketCategory"), document.String("123")))
	require.NoError(t, err)
	require.NoError(t, b.Close())

	reopened, err := NewSQLiteBackend(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	v, ok, err := files.NewConfigStore(reopened).Lookup(ctx, "g1", "tickets.ticketCategory")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "123", v.Text())
}

func TestSQLiteMigrationStatus(t *testing.T) {
	_, path := newTestSQLite(t)
	st, err := Status(DialectSQLite, path)
	require.NoError(t, err)
	assert.True(t, st.Applied)
	assert.Equal(t, uint(1), st.Version)
	assert.False(t, st.Dirty)
}
