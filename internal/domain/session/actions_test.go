package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func boolPtr(v bool) *bool { return &v }

func TestMergeActionsLastWriterWins(t *testing.T) {
	merged := MergeActions(nil,
		&EventActions{StateDelta: map[string]any{"x": 1}},
		&EventActions{StateDelta: map[string]any{"x": 2, "y": 3}},
	)

	assert.Equal(t, map[string]any{"x": 2, "y": 3}, merged.StateDelta)
}

func TestMergeActionsSkipsNilSources(t *testing.T) {
	merged := MergeActions(nil,
		nil,
		&EventActions{ArtifactDelta: map[string]int{"report.txt": 2}},
		nil,
	)

	assert.Equal(t, map[string]int{"report.txt": 2}, merged.ArtifactDelta)
}

func TestMergeActionsSeed(t *testing.T) {
	seed := &EventActions{
		StateDelta:      map[string]any{"base": true},
		TransferToAgent: "planner",
	}
	merged := MergeActions(seed,
		&EventActions{StateDelta: map[string]any{"extra": 1}},
	)

	assert.Equal(t, map[string]any{"base": true, "extra": 1}, merged.StateDelta)
	assert.Equal(t, "planner", merged.TransferToAgent)
}

func TestMergeActionsFlagOverwrites(t *testing.T) {
	merged := MergeActions(nil,
		&EventActions{SkipSummarization: boolPtr(true), Escalate: boolPtr(true)},
		&EventActions{SkipSummarization: boolPtr(false)},
	)

	// An explicit false still counts as "set": the last source wins.
	assert.NotNil(t, merged.SkipSummarization)
	assert.False(t, *merged.SkipSummarization)
	assert.NotNil(t, merged.Escalate)
	assert.True(t, *merged.Escalate)
}

func TestMergeActionsUnsetFlagPreserved(t *testing.T) {
	merged := MergeActions(nil,
		&EventActions{TransferToAgent: "researcher"},
		&EventActions{StateDelta: map[string]any{"x": 1}},
	)

	assert.Equal(t, "researcher", merged.TransferToAgent)
	assert.Nil(t, merged.SkipSummarization)
	assert.Nil(t, merged.Escalate)
}

func TestMergeActionsApprovalMaps(t *testing.T) {
	merged := MergeActions(nil,
		&EventActions{
			RequestedAuthConfigs:       map[string]any{"oauth": map[string]any{"scope": "read"}},
			RequestedToolConfirmations: map[string]bool{"delete_file": true},
		},
		&EventActions{
			RequestedAuthConfigs: map[string]any{"oauth": map[string]any{"scope": "write"}},
		},
	)

	assert.Equal(t, map[string]any{"scope": "write"}, merged.RequestedAuthConfigs["oauth"])
	assert.True(t, merged.RequestedToolConfirmations["delete_file"])
}
