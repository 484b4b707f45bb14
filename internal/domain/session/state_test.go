package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeOf(t *testing.T) {
	tests := []struct {
		key   string
		scope Scope
	}{
		{"app:theme", ScopeApp},
		{"user:locale", ScopeUser},
		{"temp:buffer", ScopeTemp},
		{"turn_count", ScopeSession},
		{"application", ScopeSession}, // prefix test, not substring
		{"app:", ScopeApp},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.scope, ScopeOf(tt.key), "key %q", tt.key)
	}
}

func TestStripScope(t *testing.T) {
	assert.Equal(t, "theme", StripScope("app:theme"))
	assert.Equal(t, "locale", StripScope("user:locale"))
	assert.Equal(t, "buffer", StripScope("temp:buffer"))
	assert.Equal(t, "turn_count", StripScope("turn_count"))
}

func TestStateGetSetDelta(t *testing.T) {
	st := NewState(map[string]any{"a": 1})

	v, ok := st.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.False(t, st.HasDelta())

	st.Set("b", 2)
	assert.True(t, st.HasDelta())
	assert.True(t, st.Has("b"))
	assert.Equal(t, 2, st.GetDefault("b", 0))
	assert.Equal(t, 99, st.GetDefault("missing", 99))

	st.Update(map[string]any{"a": 10, "c": 3})
	assert.Equal(t, map[string]any{"a": 10, "b": 2, "c": 3}, st.ToMap())
}

func TestStateDeltaWinsInToMap(t *testing.T) {
	st := NewState(map[string]any{"a": 1})
	st.Set("a", 2)

	v, ok := st.Get("a")
	require.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, map[string]any{"a": 2}, st.ToMap())
}

func TestSplitDelta(t *testing.T) {
	app, user, sess := SplitDelta(map[string]any{
		"app:model":    "m-1",
		"user:tier":    "pro",
		"temp:scratch": "x",
		"topic":        "intro",
	})

	assert.Equal(t, map[string]any{"model": "m-1"}, app)
	assert.Equal(t, map[string]any{"tier": "pro"}, user)
	assert.Equal(t, map[string]any{"topic": "intro"}, sess)
}

func TestMergeScopes(t *testing.T) {
	merged := MergeScopes(
		map[string]any{"model": "m-1"},
		map[string]any{"tier": "pro"},
		map[string]any{"topic": "intro"},
	)

	assert.Equal(t, map[string]any{
		"app:model": "m-1",
		"user:tier": "pro",
		"topic":     "intro",
	}, merged)
}

func TestSessionScopeOnly(t *testing.T) {
	local := SessionScopeOnly(map[string]any{
		"app:model": "m-1",
		"user:tier": "pro",
		"topic":     "intro",
	})

	assert.Equal(t, map[string]any{"topic": "intro"}, local)
}
