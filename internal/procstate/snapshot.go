package procstate

// Snapshot is the last observed state of one tracked process. A stored
// snapshot always reflects either the most recent poll scan or the most
// recent applied push event for its PID, never a mix of two identities.
type Snapshot struct {
	// Name is the process display name (e.g. "Safari").
	Name string `json:"name"`

	// BundleID is the stable secondary identity key (e.g.
	// "com.apple.Safari"). Empty when the process has no bundle.
	BundleID string `json:"bundleId,omitempty"`

	// Foreground classifies whether the process accepts push-sourced
	// state changes. Non-foreground processes are tracked by poll only.
	Foreground bool `json:"foreground"`

	// Responding is false while the process is hung.
	Responding bool `json:"responding"`
}

// SameIdentity reports whether two snapshots describe the same underlying
// process. PIDs are reused by the OS, so a name or bundle mismatch under
// one PID is treated as a different process. This is a heuristic: a
// process that renames itself in place is misclassified as reuse.
func (s Snapshot) SameIdentity(other Snapshot) bool {
	return s.Name == other.Name && s.BundleID == other.BundleID
}
