package bridge

import "fmt"

// Stage identifies the pipeline stage an invocation failed in.
type Stage string

// Stage constants, one per failure class.
const (
	StageOptions     Stage = "options"     // option decoding/validation
	StageEnvironment Stage = "environment" // environment module resolution
	StageTokenize    Stage = "tokenize"    // lexing the source
	StageParse       Stage = "parse"       // building the syntax tree
	StageResolve     Stage = "resolve"     // dependency name resolution
	StageCompile     Stage = "compile"     // compiling the syntax tree
	StageRender      Stage = "render"      // build-time rendering
)

// BuildError is the single failure type an invocation surfaces. The
// invocation aborts on the first failure; nothing is retried or swallowed.
type BuildError struct {
	Stage    Stage
	Resource string
	Err      error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Resource, e.Stage, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// failed wraps err as a BuildError for the given stage and resource.
func failed(stage Stage, resource string, err error) *BuildError {
	return &BuildError{Stage: stage, Resource: resource, Err: err}
}
