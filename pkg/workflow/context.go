package workflow

// Context is the mutable per-run state shared across the steps of one
// workflow execution. Inputs are set once by the executor; each step writes
// only the fields it produces. The DAG guarantees no two steps in the same
// layer touch the same field, so no locking is needed.
type Context struct {
	// Inputs (immutable after construction).
	JobID        string
	DocumentID   string
	ContentType  string
	FileBytes    []byte
	LockedFields map[string]any

	// Produced state.
	Text             string
	Fields           map[string]any
	FieldConfidence  map[string]float64
	ValidationErrors []string
	Outputs          map[string]string
	NeedsReview      bool

	// Final extraction payload (written to DB and to disk).
	ExtractionPayload map[string]any
}

// NewContext builds a run context for one job.
func NewContext(jobID, documentID, contentType string, fileBytes []byte, locked map[string]any) *Context {
	if locked == nil {
		locked = map[string]any{}
	}
	return &Context{
		JobID:           jobID,
		DocumentID:      documentID,
		ContentType:     contentType,
		FileBytes:       fileBytes,
		LockedFields:    locked,
		Fields:          map[string]any{},
		FieldConfidence: map[string]float64{},
		Outputs:         map[string]string{},
	}
}
