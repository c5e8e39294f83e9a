package harness

// Result contains the outcome of one scenario.
type Result struct {
	// Pass is true when the run ended as expected and every assertion held.
	Pass bool

	// Errors collects every failure, in evaluation order.
	Errors []string

	// RunErr is the error the mirror run returned, if any.
	RunErr error

	// Records and JunctionRows count what the import wrote.
	Records      int
	JunctionRows int

	// Requests is the number of HTTP requests the fake Datatracker served.
	Requests int
}

// NewResult creates a passing Result.
func NewResult() *Result {
	return &Result{Pass: true}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
