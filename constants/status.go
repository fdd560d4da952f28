package constants

// State is the lifecycle position of one receipt run through the pipeline.
type State string

// Stable values; they appear in logs and API responses.
const (
	StateReceived            State = "RECEIVED"
	StateLinesExtracted      State = "LINES_EXTRACTED"
	StateRowsGrouped         State = "ROWS_GROUPED"
	StateExtractionRequested State = "EXTRACTION_REQUESTED"
	StateReconciled          State = "RECONCILED"
	StatePersisted           State = "PERSISTED" // terminal success
	StateFailed              State = "FAILED"    // terminal failure
)

// Stage names one timed step of the pipeline.
type Stage string

const (
	StageInput      Stage = "input"
	StageOCR        Stage = "ocr"
	StageLines      Stage = "lines"
	StageRows       Stage = "rows"
	StageExtraction Stage = "extraction"
	StageReconcile  Stage = "reconcile"
	StagePersist    Stage = "persist"
)

// Terminal reports whether no further transition is possible from s.
func (s State) Terminal() bool {
	return s == StatePersisted || s == StateFailed
}
