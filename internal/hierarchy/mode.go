package hierarchy

// Mode is the sidebar display mode.
type Mode string

const (
	ModeFlat    Mode = "flat"
	ModeGrouped Mode = "grouped"
)

// retiredMode was a third display mode that is no longer supported. Stored
// preferences may still carry it.
const retiredMode = "tabs"

// FlatLimit is the largest asset count that still renders flat when a
// presentation has no groups.
const FlatLimit = 15

// DetectMode picks flat for small ungrouped presentations and grouped
// otherwise. It never returns the retired mode.
func DetectMode(assetCount, groupCount int) Mode {
	if groupCount == 0 && assetCount <= FlatLimit {
		return ModeFlat
	}
	return ModeGrouped
}

// ParseMode validates a stored or requested mode. The retired mode and
// unknown values are rejected.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeFlat, ModeGrouped:
		return Mode(s), true
	}
	return "", false
}

// EffectiveMode applies a stored override to the detected mode. Invalid
// overrides, including the retired mode, fall back to detection.
func EffectiveMode(override string, detected Mode) Mode {
	if m, ok := ParseMode(override); ok {
		return m
	}
	return detected
}
