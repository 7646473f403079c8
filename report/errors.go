package report

import (
	"fmt"
	"strings"
)

// TextSpan represents a range of source text as a pair of offsets into the
// owning file: the start offset is inclusive and the end offset is exclusive.
// Synthesized nodes which have no source text use `UndefinedOffset` for both.
type TextSpan struct {
	StartOffset, EndOffset int
}

// UndefinedOffset is the offset used by nodes that do not come from source.
const UndefinedOffset = -1

// NoSpan is the span of synthesized nodes.
var NoSpan = TextSpan{StartOffset: UndefinedOffset, EndOffset: UndefinedOffset}

// IsDefined returns whether the span points at real source text.
func (ts TextSpan) IsDefined() bool {
	return ts.StartOffset != UndefinedOffset
}

// -----------------------------------------------------------------------------

// LocalCompileError is a compilation error that occurs in a context in which
// the file is known by the error handler and thus doesn't need to be passed
// along with the error.  Lowering raises these for known capability gaps (eg.
// a default value on a parameter shape the stub generator cannot handle).
type LocalCompileError struct {
	// The error message.
	Message string

	// The span over which the error occurs.
	Span TextSpan

	// The path of the file the error occurred in.  It is filled in by whoever
	// catches the error if it is not known at the raise site.
	FilePath string
}

func (lce *LocalCompileError) Error() string {
	if lce.FilePath == "" {
		return lce.Message
	}

	if lce.Span.IsDefined() {
		return fmt.Sprintf("%s:%d: %s", lce.FilePath, lce.Span.StartOffset, lce.Message)
	}

	return fmt.Sprintf("%s: %s", lce.FilePath, lce.Message)
}

// Raise creates a new local compile error.
func Raise(span TextSpan, msg string, args ...interface{}) *LocalCompileError {
	return &LocalCompileError{Message: fmt.Sprintf(msg, args...), Span: span}
}

// -----------------------------------------------------------------------------

// InternalError is an internal compiler error: a broken invariant inside the
// compiler itself.  Lowering must never continue past one of these, so they
// travel as panics until the pipeline boundary.
type InternalError struct {
	// The error message.
	Message string

	// The phase during which the error occurred, if known.
	Phase string

	// A rendering of the declaration being processed, if known.
	Declaration string
}

func (ie *InternalError) Error() string {
	sb := strings.Builder{}
	sb.WriteString("internal compiler error")

	if ie.Phase != "" {
		sb.WriteString(" in ")
		sb.WriteString(ie.Phase)
	}

	if ie.Declaration != "" {
		sb.WriteString(" at ")
		sb.WriteString(ie.Declaration)
	}

	sb.WriteString(": ")
	sb.WriteString(ie.Message)
	return sb.String()
}

// ICE panics with an internal compiler error.  It never returns.
func ICE(message string, args ...interface{}) {
	panic(&InternalError{Message: fmt.Sprintf(message, args...)})
}

// ICEAt panics with an internal compiler error annotated with the phase and a
// description of the declaration being processed.
func ICEAt(phase, decl string, message string, args ...interface{}) {
	panic(&InternalError{
		Message:     fmt.Sprintf(message, args...),
		Phase:       phase,
		Declaration: decl,
	})
}

// -----------------------------------------------------------------------------

// BuildError is a failure of an external tool: the native backend, `llc`, or
// the linker.  The raw output of the tool is kept verbatim.
type BuildError struct {
	// The name of the tool that failed.
	Tool string

	// The raw diagnostic output of the tool.
	Output string

	// The library most likely responsible for the failure, if one could be
	// determined.
	Library string

	// The human-authored hint attached to that library, if any.
	Hint string

	// The underlying error returned when running the tool.
	Err error
}

func (be *BuildError) Error() string {
	sb := strings.Builder{}
	fmt.Fprintf(&sb, "%s failed", be.Tool)

	if be.Err != nil {
		fmt.Fprintf(&sb, " (%s)", be.Err)
	}

	if be.Output != "" {
		sb.WriteString(":\n")
		sb.WriteString(be.Output)
	}

	switch {
	case be.Hint != "" && be.Library != "":
		fmt.Fprintf(&sb, "\nhint (library %s): %s", be.Library, be.Hint)
	case be.Hint != "":
		fmt.Fprintf(&sb, "\nhint: %s", be.Hint)
	}

	return sb.String()
}

func (be *BuildError) Unwrap() error {
	return be.Err
}

// CacheError is a cache consistency error.  These are always detected before
// any build work begins.
type CacheError struct {
	// The library whose cache is inconsistent.
	Library string

	// The error message.
	Message string
}

func (ce *CacheError) Error() string {
	return fmt.Sprintf("cache of library `%s`: %s", ce.Library, ce.Message)
}

// -----------------------------------------------------------------------------

// Recover catches the errors thrown by a `panic` inside a unit of compilation
// work and stores them in `errp`.  Internal errors get their phase filled in if
// it was not known at the raise site; local compile errors get their file path.
// Any other panic is propagated.
// NB: This function must ALWAYS be deferred.
func Recover(phase, filePath string, errp *error) {
	if x := recover(); x != nil {
		switch v := x.(type) {
		case *InternalError:
			if v.Phase == "" {
				v.Phase = phase
			}

			*errp = v
		case *LocalCompileError:
			if v.FilePath == "" {
				v.FilePath = filePath
			}

			*errp = v
		default:
			panic(x)
		}
	}
}

// CatchErrors catches any errors thrown by a `panic` during a stage of
// compilation and reports them.  Local compile errors are reported and the
// stage is abandoned; internal errors are reported and the process exits.
// NB: This function must ALWAYS be deferred.
func CatchErrors(filePath string) {
	if x := recover(); x != nil {
		switch v := x.(type) {
		case *LocalCompileError:
			if v.FilePath == "" {
				v.FilePath = filePath
			}

			ReportCompileError(v.FilePath, v.Span, "%s", v.Message)
		case *InternalError:
			ReportICE(v)
		default:
			panic(x)
		}
	}
}
