package report

import "time"

// Run is one check invocation.
type Run struct {
	ID        int64
	Workspace string
	StartedAt time.Time
	Roots     int
	Files     int
}

// Diagnostic is one finding of a run. Start and End are byte offsets into
// Document; Line and Col are 1-based and zero when unknown.
type Diagnostic struct {
	ID       int64
	RunID    int64
	Document string
	Start    int
	End      int
	Line     int
	Col      int
	Severity string
	Message  string
}

// Signature is the concluded signature of one declared function.
type Signature struct {
	ID        int64
	RunID     int64
	Name      string
	Path      string
	Document  string
	HasParams bool
	Return    string
	Params    []Param
}

// Param is one parameter of a Signature, in declaration order.
type Param struct {
	Name     string
	Type     string
	Optional bool
}
