package refcount

// State tracks where one generation of a managed resource is in its
// lifecycle. Transitions are driven exclusively by the Manager.
type State int

const (
	// StateCreated: constructed but not started. An instance can stay
	// here while an earlier instance for the same identifier is still
	// draining.
	StateCreated State = iota

	// StateStarting: Start has been issued, waiting for the resource to
	// report back through NotifyReady.
	StateStarting

	// StateLive: started and ready to be handed to referrers.
	StateLive

	// StateStopping: unreferenced and told to tear down; waiting for the
	// resource to report back through NotifyCleanupDone.
	StateStopping
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateStarting:
		return "Starting"
	case StateLive:
		return "Live"
	case StateStopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}
