package session

// MergeActions combines an ordered sequence of action sets into one,
// optionally pre-populated from seed. Maps are shallow-merged key by key
// and the scalar flags are overwritten whenever a later source sets them
// at all, including an explicit false. Last writer wins at the field level
// and at the per-map-key level; nothing is merged recursively.
func MergeActions(seed *EventActions, sources ...*EventActions) EventActions {
	merged := NewEventActions()
	if seed != nil {
		mergeActionsInto(&merged, seed)
	}
	for _, src := range sources {
		if src == nil {
			continue
		}
		mergeActionsInto(&merged, src)
	}
	return merged
}

func mergeActionsInto(dst *EventActions, src *EventActions) {
	for k, v := range src.StateDelta {
		dst.StateDelta[k] = v
	}
	for k, v := range src.ArtifactDelta {
		dst.ArtifactDelta[k] = v
	}
	for k, v := range src.RequestedAuthConfigs {
		dst.RequestedAuthConfigs[k] = v
	}
	for k, v := range src.RequestedToolConfirmations {
		dst.RequestedToolConfirmations[k] = v
	}
	if src.SkipSummarization != nil {
		v := *src.SkipSummarization
		dst.SkipSummarization = &v
	}
	if src.TransferToAgent != "" {
		dst.TransferToAgent = src.TransferToAgent
	}
	if src.Escalate != nil {
		v := *src.Escalate
		dst.Escalate = &v
	}
}
