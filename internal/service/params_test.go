package service

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeParameters(t *testing.T) {
	defaults := json.RawMessage(`{"replications": 5, "arrival_rate": 1.5, "staff": 2}`)
	overrides := json.RawMessage(`{"arrival_rate": 3.0, "shift": "night"}`)

	merged, err := mergeParameters(defaults, overrides)
	require.NoError(t, err)
	assert.Equal(t, 3.0, merged["arrival_rate"], "override wins")
	assert.Equal(t, 5.0, merged["replications"], "unset keys inherit the default")
	assert.Equal(t, 2.0, merged["staff"])
	assert.Equal(t, "night", merged["shift"], "new keys may be introduced by overrides")
}

func TestMergeParametersEmptyInputs(t *testing.T) {
	merged, err := mergeParameters(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, merged)

	merged, err = mergeParameters(nil, json.RawMessage(`{"a": 1}`))
	require.NoError(t, err)
	assert.Equal(t, 1.0, merged["a"])

	_, err = mergeParameters(json.RawMessage(`not json`), nil)
	assert.Error(t, err)
}

func TestIncompleteKeys(t *testing.T) {
	merged, err := mergeParameters(
		json.RawMessage(`{"a": null, "b": 2}`),
		json.RawMessage(`{"c": null}`),
	)
	require.NoError(t, err)
	missing := incompleteKeys(merged)
	assert.ElementsMatch(t, []string{"a", "c"}, missing)

	// An override can resolve a null default.
	merged, err = mergeParameters(
		json.RawMessage(`{"a": null}`),
		json.RawMessage(`{"a": 7}`),
	)
	require.NoError(t, err)
	assert.Empty(t, incompleteKeys(merged))
}

func TestReplicationCount(t *testing.T) {
	cases := []struct {
		name string
		bag  string
		want int
		ok   bool
	}{
		{"present", `{"replications": 10}`, 10, true},
		{"truncates fraction", `{"replications": 2.9}`, 2, true},
		{"absent", `{"other": 1}`, 0, false},
		{"zero", `{"replications": 0}`, 0, false},
		{"negative", `{"replications": -3}`, 0, false},
		{"non-numeric", `{"replications": "many"}`, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			merged, err := mergeParameters(json.RawMessage(tc.bag), nil)
			require.NoError(t, err)
			got, ok := replicationCount(merged)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCopyName(t *testing.T) {
	taken := map[string]bool{"base (copy)": true, "base (copy 2)": true}
	exists := func(candidate string) (bool, error) { return taken[candidate], nil }

	name, err := copyName("explicit", "base", exists)
	require.NoError(t, err)
	assert.Equal(t, "explicit", name, "a requested name is used verbatim")

	name, err = copyName("", "base", exists)
	require.NoError(t, err)
	assert.Equal(t, "base (copy 3)", name)

	name, err = copyName("", "fresh", exists)
	require.NoError(t, err)
	assert.Equal(t, "fresh (copy)", name)
}
