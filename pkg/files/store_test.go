package files

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/small-frappuccino/guildpanel/pkg/document"
)

func patchOf(t *testing.T, s string) document.Map {
	t.Helper()
	m, err := document.Parse([]byte(s))
	require.NoError(t, err)
	return m
}

func TestApplyMergesAndPersists(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	store := NewConfigStore(backend)

	res, err := store.Apply(ctx, "g1", patchOf(t, `{"tickets":{"ticketCategory":"123"}}`))
	require.NoError(t, err)
	assert.True(t, res.Changed)

	_, err = store.Apply(ctx, "g1", patchOf(t, `{"tickets":{"supportRole":"55"}}`))
	require.NoError(t, err)

	stored, err := backend.Load(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "123", stored.LookupString(document.MustPath("tickets.ticketCategory")))
	assert.Equal(t, "55", stored.LookupString(document.MustPath("tickets.supportRole")))
}

func TestApplyRejectsAllNullPatch(t *testing.T) {
	backend := NewMemoryBackend()
	store := NewConfigStore(backend)

	_, err := store.Apply(context.Background(), "g1", patchOf(t, `{"logging":{"modLogs":{"webhookUrl":null}}}`))
	assert.ErrorIs(t, err, ErrPatchRejected)
	assert.Equal(t, 0, backend.Saves())
}

func TestApplyPrunesNullLeaves(t *testing.T) {
	ctx := context.Background()
	store := NewConfigStore(NewMemoryBackend())

	_, err := store.Apply(ctx, "g1", patchOf(t, `{"logging":{"modLogs":{"enabled":true,"channelId":"9","webhookUrl":null}}}`))
	require.NoError(t, err)

	v, ok, err := store.Lookup(ctx, "g1", "logging.modLogs")
	require.NoError(t, err)
	require.True(t, ok)
	modLogs, _ := v.AsMap()
	assert.Equal(t, []string{"channelId", "enabled"}, modLogs.Keys())
}

func TestApplyUnchangedSkipsSave(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	store := NewConfigStore(backend)

	_, err := store.Apply(ctx, "g1", patchOf(t, `{"general":{"prefix":"!"}}`))
	require.NoError(t, err)
	res, err := store.Apply(ctx, "g1", patchOf(t, `{"general":{"prefix":"!"}}`))
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, 1, backend.Saves())
}

func TestApplyPersistsSnowflakeSizedNumbers(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	store := NewConfigStore(backend)

	_, err := store.Replace(ctx, "g1", patchOf(t, `{"tickets":{"supportRole":123456789012345678}}`))
	require.NoError(t, err)
	res, err := store.Apply(ctx, "g1", patchOf(t, `{"tickets":{"supportRole":123456789012345679}}`))
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, 2, backend.Saves())

	stored, err := backend.Load(ctx, "g1")
	require.NoError(t, err)
	v, ok := stored.Lookup(document.MustPath("tickets.supportRole"))
	require.True(t, ok)
	n, ok := v.AsNumber()
	require.True(t, ok)
	assert.Equal(t, "123456789012345679", n.String())
}

func TestApplyPersistenceFailureKeepsCommittedDocument(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	store := NewConfigStore(backend)

	_, err := store.Apply(ctx, "g1", patchOf(t, `{"general":{"prefix":"!"}}`))
	require.NoError(t, err)

	backend.FailSaves(errors.New("disk full"))
	_, err = store.Apply(ctx, "g1", patchOf(t, `{"general":{"prefix":"?"}}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "g1", perr.Scope)

	doc, err := store.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "!", doc.LookupString(document.MustPath("general.prefix")))

	backend.FailSaves(nil)
	_, err = store.Apply(ctx, "g1", patchOf(t, `{"general":{"prefix":"?"}}`))
	require.NoError(t, err, "retry after the backend recovers")
}

func TestGetReturnsIsolatedCopies(t *testing.T) {
	ctx := context.Background()
	store := NewConfigStore(NewMemoryBackend())
	_, err := store.Apply(ctx, "g1", patchOf(t, `{"general":{"prefix":"!"}}`))
	require.NoError(t, err)

	doc, err := store.Get(ctx, "g1")
	require.NoError(t, err)
	doc["general"] = document.String("clobbered")

	again, err := store.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "!", again.LookupString(document.MustPath("general.prefix")))
}

func TestConcurrentWritersDoNotLoseDisjointEdits(t *testing.T) {
	ctx := context.Background()
	store := NewConfigStore(NewMemoryBackend())

	const writers = 24
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := document.PatchAt(document.Path{"economy", fmt.Sprintf("k%02d", i)}, document.Int(int64(i)))
			_, err := store.Apply(ctx, "g1", p)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	doc, err := store.Get(ctx, "g1")
	require.NoError(t, err)
	economy, ok := doc["economy"].AsMap()
	require.True(t, ok)
	assert.Len(t, economy, writers)
}

func TestChangeHookSeesCommittedPatch(t *testing.T) {
	ctx := context.Background()
	var got []ConfigChange
	store := NewConfigStore(NewMemoryBackend(), WithChangeHook(func(c ConfigChange) { got = append(got, c) }))

	_, err := store.Apply(ctx, "g1", patchOf(t, `{"levels":{"enabled":true,"ignored":null}}`))
	require.NoError(t, err)
	_, _ = store.Apply(ctx, "g1", patchOf(t, `{"x":null}`))

	require.Len(t, got, 1)
	assert.Equal(t, "g1", got[0].Scope)
	assert.Equal(t, []string{"enabled"}, mustMap(t, got[0].Patch["levels"]).Keys())
}

func TestMutateClearsField(t *testing.T) {
	ctx := context.Background()
	store := NewConfigStore(NewMemoryBackend())
	_, err := store.Apply(ctx, "g1", patchOf(t, `{"logging":{"modLogs":{"enabled":true,"webhookUrl":"https://x"}}}`))
	require.NoError(t, err)

	path := document.MustPath("logging.modLogs.webhookUrl")
	res, err := store.Mutate(ctx, "g1", func(doc document.Map) (document.Map, error) {
		return doc.Without(path), nil
	})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	_, still := res.Document.Lookup(path)
	assert.False(t, still)
}

func TestInvalidScopeRejected(t *testing.T) {
	store := NewConfigStore(NewMemoryBackend())
	_, err := store.Get(context.Background(), "../etc")
	assert.ErrorIs(t, err, ErrInvalidScope)
}

func mustMap(t *testing.T, v document.Value) document.Map {
	t.Helper()
	m, ok := v.AsMap()
	require.True(t, ok)
	return m
}
