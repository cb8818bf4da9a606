package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, s string) Map {
	t.Helper()
	m, err := Parse([]byte(s))
	require.NoError(t, err)
	return m
}

func TestDeepMergeRecursesIntoMaps(t *testing.T) {
	target := mustParse(t, `{"tickets":{"ticketCategory":"123","limits":{"open":2}},"general":{"prefix":"!"}}`)
	source := mustParse(t, `{"tickets":{"supportRole":"77","limits":{"closeAfter":24}}}`)

	merged := DeepMerge(target, source)
	want := mustParse(t, `{"tickets":{"ticketCategory":"123","supportRole":"77","limits":{"open":2,"closeAfter":24}},"general":{"prefix":"!"}}`)
	assert.True(t, MapsEqual(want, merged), "got %s", dump(t, merged))

	// Inputs are untouched.
	_, hasRole := target.Lookup(MustPath("tickets.supportRole"))
	assert.False(t, hasRole)
}

func TestDeepMergeReplacesListsAndScalars(t *testing.T) {
	target := mustParse(t, `{"tickets":{"authorizedRoles":["1","2","3"]},"levels":{"enabled":false}}`)
	source := mustParse(t, `{"tickets":{"authorizedRoles":["9"]},"levels":{"enabled":true}}`)

	merged := DeepMerge(target, source)
	roles, ok := merged.Lookup(MustPath("tickets.authorizedRoles"))
	require.True(t, ok)
	assert.Equal(t, []string{"9"}, roles.StringSlice())
	enabled, _ := merged.Lookup(MustPath("levels.enabled"))
	b, _ := enabled.AsBool()
	assert.True(t, b)
}

func TestDeepMergeMapReplacesScalarAndViceVersa(t *testing.T) {
	target := mustParse(t, `{"a":"flat","b":{"x":1}}`)
	source := mustParse(t, `{"a":{"nested":true},"b":"flat"}`)

	merged := DeepMerge(target, source)
	assert.True(t, MapsEqual(source, merged))
}

func TestDeepMergeDoesNotAliasResult(t *testing.T) {
	target := mustParse(t, `{"a":{"b":1}}`)
	merged := DeepMerge(target, Map{})
	inner, _ := merged["a"].AsMap()
	inner["c"] = Int(2)

	_, leaked := target.Lookup(MustPath("a.c"))
	assert.False(t, leaked)
}

// Sequential patches touching disjoint leaves equal one combined patch.
func TestDeepMergeDisjointPatchesCompose(t *testing.T) {
	doc := mustParse(t, `{"general":{"prefix":"!"},"logging":{"modLogs":{"enabled":false}}}`)
	cases := []struct {
		name   string
		p1, p2 string
	}{
		{"sibling leaves", `{"logging":{"modLogs":{"channelId":"9"}}}`, `{"logging":{"modLogs":{"enabled":true}}}`},
		{"different sections", `{"tickets":{"ticketCategory":"123"}}`, `{"general":{"prefix":"?"}}`},
		{"list and scalar", `{"tickets":{"authorizedRoles":["1"]}}`, `{"tickets":{"supportRole":"5"}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p1 := mustParse(t, tc.p1)
			p2 := mustParse(t, tc.p2)
			sequential := DeepMerge(DeepMerge(doc, p1), p2)
			combined := DeepMerge(doc, MergeShape(p1, p2))
			assert.True(t, MapsEqual(sequential, combined), "sequential=%s combined=%s", dump(t, sequential), dump(t, combined))
		})
	}
}

func TestPruneNullsRemovesOnlyNullBranches(t *testing.T) {
	in := mustParse(t, `{"a":{"b":null,"c":1},"d":null}`)
	assert.True(t, MapsEqual(mustParse(t, `{"a":{"c":1}}`), PruneNulls(in)))
}

func TestPruneNullsDropsEmptiedMapsKeepsLists(t *testing.T) {
	in := mustParse(t, `{"a":{"b":{"c":null}},"roles":[],"mixed":[null,"1"],"e":{}}`)
	out := PruneNulls(in)

	assert.Equal(t, []string{"mixed", "roles"}, out.Keys())
	mixed, _ := out["mixed"].AsList()
	assert.Len(t, mixed, 2, "list elements are not pruned")
}

func TestPruneNullsAllNullPatchIsEmpty(t *testing.T) {
	in := mustParse(t, `{"logging":{"modLogs":{"webhookUrl":null}},"x":null}`)
	assert.True(t, PruneNulls(in).IsEmpty())
}

func TestPrunedPatchDropsNullLeaf(t *testing.T) {
	patch := mustParse(t, `{"logging":{"modLogs":{"enabled":true,"channelId":"9","webhookUrl":null}}}`)
	doc := DeepMerge(Map{}, PruneNulls(patch))

	modLogs, ok := doc.Lookup(MustPath("logging.modLogs"))
	require.True(t, ok)
	m, _ := modLogs.AsMap()
	assert.Equal(t, []string{"channelId", "enabled"}, m.Keys())
}

func TestChanges(t *testing.T) {
	doc := mustParse(t, `{"general":{"prefix":"!"}}`)
	assert.False(t, Changes(doc, mustParse(t, `{"general":{"prefix":"!"}}`)))
	assert.True(t, Changes(doc, mustParse(t, `{"general":{"prefix":"?"}}`)))
}

func dump(t *testing.T, m Map) string {
	t.Helper()
	b, err := MarshalIndent(m)
	require.NoError(t, err)
	return string(b)
}
