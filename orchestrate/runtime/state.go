package runtime

// State is the lifecycle state of an agent runtime.
type State string

const (
	StateInitializing           State = "INITIALIZING"
	StateIdle                   State = "IDLE"
	StateBusy                   State = "BUSY"
	StateProcessingExternalCall State = "PROCESSING_EXTERNAL_CALL"
	StateError                  State = "ERROR"
	StateShutdown               State = "SHUTDOWN"
)

// Terminal reports whether no further transitions are accepted.
func (s State) Terminal() bool {
	return s == StateShutdown
}
