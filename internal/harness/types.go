package harness

// Outcome of a step that returned no error.
const OutcomeOK = "ok"

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq     int               `json:"seq"`
	Op      string            `json:"op"`
	Args    map[string]string `json:"args,omitempty"`
	Outcome string            `json:"outcome"` // OutcomeOK or an error code
	Result  map[string]string `json:"result,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step matched its expectation and every assertion held.
	Pass bool `json:"pass"`

	// Trace contains the executed steps in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains mismatch messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step to the trace and returns its sequence number.
func (r *Result) AddTrace(op string, args map[string]string, outcome string, result map[string]string) int {
	seq := len(r.Trace) + 1
	r.Trace = append(r.Trace, TraceEvent{
		Seq:     seq,
		Op:      op,
		Args:    args,
		Outcome: outcome,
		Result:  result,
	})
	return seq
}
