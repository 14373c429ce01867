package capability

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/machinefabric/hostbridge-go/standard"
)

// TEST200: Has follows each dotted segment as one level of nesting
func Test200_supports_has_nested(t *testing.T) {
	var s Supports
	require.NoError(t, json.Unmarshal([]byte(`{"chat":{},"pages":{"tabs":{},"config":{}},"dialog":{"card":{"bot":{}}}}`), &s))

	assert.True(t, s.Has("chat"))
	assert.True(t, s.Has("pages"))
	assert.True(t, s.Has("pages.tabs"))
	assert.True(t, s.Has("dialog.card.bot"))
	assert.False(t, s.Has("mail"))
	assert.False(t, s.Has("pages.backStack"))
	assert.False(t, s.Has("chat.sub"))
	assert.False(t, s.Has(""))
}

// TEST201: null, false, zero and empty string leaves are absent, other values are leaves
func Test201_supports_leaf_values(t *testing.T) {
	var s Supports
	require.NoError(t, json.Unmarshal([]byte(`{"a":null,"b":false,"c":0,"d":"","e":true,"f":1,"g":"yes","h":[]}`), &s))

	for _, absent := range []string{"a", "b", "c", "d"} {
		assert.False(t, s.Has(absent), absent)
	}
	for _, present := range []string{"e", "f", "g", "h"} {
		assert.True(t, s.Has(present), present)
	}
}

// TEST202: a non-object tree is rejected
func Test202_supports_rejects_non_object(t *testing.T) {
	var s Supports
	assert.Error(t, json.Unmarshal([]byte(`["chat"]`), &s))
}

// TEST203: Set creates the chain and Paths lists interior and leaf paths sorted
func Test203_supports_set_and_paths(t *testing.T) {
	s := Supports{}
	s.Set("teams.fullTrust.joinedTeams")
	s.Set("chat")
	s.Set("")

	assert.Equal(t, []string{"chat", "teams", "teams.fullTrust", "teams.fullTrust.joinedTeams"}, s.Paths())
}

// TEST204: Clone is deep and Merge adds without removing
func Test204_supports_clone_merge(t *testing.T) {
	s := Supports{}
	s.Set("pages.tabs")
	clone := s.Clone()
	clone.Set("pages.config")
	assert.False(t, s.Has("pages.config"))

	other := Supports{}
	other.Set("pages.backStack")
	other.Set("mail")
	s.Merge(other)
	assert.True(t, s.Has("pages.tabs"))
	assert.True(t, s.Has("pages.backStack"))
	assert.True(t, s.Has("mail"))
}

// TEST205: a tree survives marshal and unmarshal with leaves encoded as objects
func Test205_supports_marshal(t *testing.T) {
	s := Supports{}
	s.Set("chat")
	s.Set("pages.tabs")
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"chat":{},"pages":{"tabs":{}}}`, string(data))
}

// TEST206: ParseRuntime accepts an object
func Test206_parse_runtime_object(t *testing.T) {
	rt, err := ParseRuntime(json.RawMessage(`{"apiVersion":1,"supports":{"chat":{}},"isNAAChannelRecommended":true,"hostVersionsInfo":{"adaptiveCardSchemaVersion":{"majorVersion":1,"minorVersion":5}}}`))
	require.NoError(t, err)
	require.NotNil(t, rt)
	assert.Equal(t, 1, rt.APIVersion)
	assert.True(t, rt.IsNAAChannelRecommended)
	assert.True(t, rt.IsSupported("chat"))
	assert.False(t, rt.IsSupported("mail"))
	assert.JSONEq(t, `{"adaptiveCardSchemaVersion":{"majorVersion":1,"minorVersion":5}}`, string(rt.HostVersionsInfo))
}

// TEST207: ParseRuntime accepts a JSON string holding the object
func Test207_parse_runtime_string_wrapped(t *testing.T) {
	rt, err := ParseRuntime(json.RawMessage(`"{\"apiVersion\":2,\"supports\":{\"pages\":{\"tabs\":{}}}}"`))
	require.NoError(t, err)
	require.NotNil(t, rt)
	assert.Equal(t, 2, rt.APIVersion)
	assert.True(t, rt.IsSupported("pages.tabs"))
}

// TEST208: absent runtime config yields nil without error
func Test208_parse_runtime_absent(t *testing.T) {
	for _, raw := range []string{``, `null`, `"null"`, `""`} {
		rt, err := ParseRuntime(json.RawMessage(raw))
		assert.NoError(t, err, raw)
		assert.Nil(t, rt, raw)
	}
}

// TEST209: schema violations produce a RuntimeError
func Test209_parse_runtime_schema_violations(t *testing.T) {
	cases := []string{
		`{"supports":{}}`,
		`{"apiVersion":1}`,
		`{"apiVersion":0,"supports":{}}`,
		`{"apiVersion":"1","supports":{}}`,
		`{"apiVersion":1,"supports":[]}`,
		`{"apiVersion":1.5,"supports":{}}`,
		`[1,2]`,
		`"{not json"`,
		`{broken`,
	}
	for _, raw := range cases {
		rt, err := ParseRuntime(json.RawMessage(raw))
		assert.Nil(t, rt, raw)
		var rtErr *RuntimeError
		assert.True(t, errors.As(err, &rtErr), raw)
	}
}

// TEST210: Clone does not share the tree with the original
func Test210_runtime_clone(t *testing.T) {
	rt, err := ParseRuntime(json.RawMessage(`{"apiVersion":1,"supports":{"chat":{}}}`))
	require.NoError(t, err)
	clone := rt.Clone()
	clone.Supports.Set("mail")
	assert.False(t, rt.IsSupported("mail"))
	assert.Nil(t, (*Runtime)(nil).Clone())
	assert.False(t, (*Runtime)(nil).IsSupported("chat"))
}

// TEST211: versions compare numerically per component, not lexically
func Test211_compare_versions(t *testing.T) {
	cmp, err := CompareVersions("1.10.0", "1.9.0")
	require.NoError(t, err)
	assert.Equal(t, 1, cmp)

	cmp, err = CompareVersions("2.0", "2.0.0")
	require.NoError(t, err)
	assert.Equal(t, 0, cmp)

	cmp, err = CompareVersions("1.6.0", "2.0.1")
	require.NoError(t, err)
	assert.Equal(t, -1, cmp)

	_, err = CompareVersions("not-a-version", "1.0.0")
	assert.Error(t, err)

	assert.True(t, IsVersionAtLeast("2.0.5", "2.0.1"))
	assert.False(t, IsVersionAtLeast("2.0.0", "2.0.1"))
	assert.False(t, IsVersionAtLeast("garbage", "1.0.0"))
}

// TEST212: an old host gets the base set and nothing gated by version
func Test212_backcompat_base_only(t *testing.T) {
	rt, err := GenerateBackCompatRuntimeConfig("1.6.0", standard.HostClientWeb)
	require.NoError(t, err)
	assert.Equal(t, BackCompatAPIVersion, rt.APIVersion)
	assert.True(t, rt.IsLegacyTeams)
	assert.True(t, rt.IsSupported(standard.CapChat))
	assert.True(t, rt.IsSupported(standard.CapPagesTabs))
	assert.True(t, rt.IsSupported(standard.CapRemoteCamera))
	assert.False(t, rt.IsSupported(standard.CapLocation))
	assert.False(t, rt.IsSupported(standard.CapMail))
}

// TEST213: version entries apply only to their host client types
func Test213_backcompat_client_type_gating(t *testing.T) {
	desktop, err := GenerateBackCompatRuntimeConfig("2.0.1", standard.HostClientDesktop)
	require.NoError(t, err)
	assert.True(t, desktop.IsSupported(standard.CapWebStorage))
	assert.True(t, desktop.IsSupported(standard.CapSharing))
	assert.True(t, desktop.IsSupported(standard.CapTeamsFullTrustJoinedTms))

	android, err := GenerateBackCompatRuntimeConfig("2.0.1", standard.HostClientAndroid)
	require.NoError(t, err)
	assert.False(t, android.IsSupported(standard.CapWebStorage))
	assert.False(t, android.IsSupported(standard.CapSharing))
	assert.False(t, android.IsSupported(standard.CapRemoteCamera))
	assert.True(t, android.IsSupported(standard.CapPeople))

	android205, err := GenerateBackCompatRuntimeConfig("2.0.5", standard.HostClientAndroid)
	require.NoError(t, err)
	assert.True(t, android205.IsSupported(standard.CapWebStorage))

	mac, err := GenerateBackCompatRuntimeConfig("2.0.5", standard.HostClientMacOS)
	require.NoError(t, err)
	assert.False(t, mac.IsSupported(standard.CapLocation))
}

// TEST214: version thresholds use full triple comparison
func Test214_backcompat_triple_compare(t *testing.T) {
	rt, err := GenerateBackCompatRuntimeConfig("1.10.0", standard.HostClientWeb)
	require.NoError(t, err)
	assert.True(t, rt.IsSupported(standard.CapLocation), "1.10.0 is newer than 1.9.0")
	assert.False(t, rt.IsSupported(standard.CapPeople))
}

// TEST215: raising the version never removes a capability
func Test215_backcompat_monotonic(t *testing.T) {
	versions := []string{"1.0.0", "1.8.9", "1.9.0", "1.10.0", "2.0.0", "2.0.1", "2.0.4", "2.0.5", "3.0.0"}
	for _, hct := range append(standard.V1HostClientTypes(), standard.HostClientMacOS, "unknownClient") {
		var prev []string
		for _, v := range versions {
			rt, err := GenerateBackCompatRuntimeConfig(v, hct)
			require.NoError(t, err)
			for _, path := range prev {
				assert.True(t, rt.IsSupported(path), "%s lost %s at %s", hct, path, v)
			}
			prev = rt.Supports.Paths()
		}
	}
}

// TEST216: the table is sorted by minimum version
func Test216_backcompat_table_sorted(t *testing.T) {
	table := BackCompatTable()
	for i := 1; i < len(table); i++ {
		cmp, err := CompareVersions(table[i-1].MinVersion, table[i].MinVersion)
		require.NoError(t, err)
		assert.LessOrEqual(t, cmp, 0, "entry %d out of order", i)
	}
}

// TEST217: an unparseable version keeps the base set and reports the error
func Test217_backcompat_bad_version(t *testing.T) {
	rt, err := GenerateBackCompatRuntimeConfig("banana", standard.HostClientWeb)
	require.Error(t, err)
	require.NotNil(t, rt)
	assert.True(t, rt.IsSupported(standard.CapChat))
	assert.False(t, rt.IsSupported(standard.CapLocation))
}
