package shredder

// ProgressEvent represents a progress update during a pack operation.
type ProgressEvent struct {
	// Stage identifies the current phase of the operation.
	Stage ProgressStage

	// Name is the record just packed, if applicable.
	Name string

	// RecordsDone is the number of records packed so far.
	RecordsDone uint64

	// BytesDone is the number of content bytes packed so far.
	BytesDone uint64
}

// ProgressStage identifies the current phase of a pack operation.
type ProgressStage uint8

const (
	// StageOpened is reported once the archive was opened and its format
	// detected, before the container is created.
	StageOpened ProgressStage = iota

	// StagePacking is reported after each record is appended.
	StagePacking

	// StageFinalizing is reported once the archive is exhausted, before the
	// container is closed.
	StageFinalizing

	// StageDone is reported after the container is closed.
	StageDone
)

// String returns the string representation of the stage.
func (s ProgressStage) String() string {
	switch s {
	case StageOpened:
		return "opened"
	case StagePacking:
		return "packing"
	case StageFinalizing:
		return "finalizing"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

// ProgressFunc receives progress updates during a pack operation.
// It is called synchronously from the packing goroutine.
type ProgressFunc func(ProgressEvent)
