package report

import (
	"errors"
	"fmt"
	"os"
)

// ReportICE reports an internal compiler error and exits.  These are errors
// that specifically result from a bug or unexpected condition occurring within
// the compiler: they are not intended to ever happen.  These errors are always
// displayed regardless of log level.
func ReportICE(ie *InternalError) {
	rep.m.Lock()
	defer rep.m.Unlock()

	displayICE(ie)

	os.Exit(-1)
}

// ReportFatal reports a fatal error.  These are errors that should cause all
// compilation to stop immediately.  However, they are expected errors that
// generally result from invalid configuration of some form: missing profile,
// can't find requisite tools (eg. `llc`), etc.
func ReportFatal(message string, args ...interface{}) {
	if rep.logLevel > LogLevelSilent {
		rep.m.Lock()
		defer rep.m.Unlock()

		displayFatal(fmt.Sprintf(message, args...))
	}

	os.Exit(1)
}

// ReportCompileError reports a compilation error inside the given file.
func ReportCompileError(filePath string, span TextSpan, message string, args ...interface{}) {
	rep.m.Lock()
	defer rep.m.Unlock()

	rep.errorCount++

	if rep.logLevel > LogLevelSilent {
		displayCompileMessage(true, filePath, span, fmt.Sprintf(message, args...))
	}
}

// ReportCompileWarning reports a compilation warning.  The arguments are of
// the same form as those to ReportCompileError.
func ReportCompileWarning(filePath string, span TextSpan, message string, args ...interface{}) {
	rep.m.Lock()
	defer rep.m.Unlock()

	rep.warningCount++

	if rep.logLevel > LogLevelError {
		displayCompileMessage(false, filePath, span, fmt.Sprintf(message, args...))
	}
}

// ReportError reports any error produced by the compiler, choosing the display
// based on its kind.  Internal errors still cause the process to exit.
func ReportError(tag string, err error) {
	var ie *InternalError
	if errors.As(err, &ie) {
		ReportICE(ie)
		return
	}

	var lce *LocalCompileError
	if errors.As(err, &lce) {
		ReportCompileError(lce.FilePath, lce.Span, "%s", lce.Message)
		return
	}

	rep.m.Lock()
	defer rep.m.Unlock()

	rep.errorCount++

	if rep.logLevel > LogLevelSilent {
		var be *BuildError
		if errors.As(err, &be) {
			displayBuildError(be)
		} else {
			displayStdError(tag, err)
		}
	}
}

// Debugf displays a debug trace tagged with the name of the component emitting
// it.  Nothing is displayed below the debug log level.
func Debugf(tag, message string, args ...interface{}) {
	rep.m.Lock()
	defer rep.m.Unlock()

	if rep.logLevel >= LogLevelDebug {
		displayDebug(tag, fmt.Sprintf(message, args...))
	}
}

// ReportInfo displays an informational message.
func ReportInfo(tag, message string, args ...interface{}) {
	rep.m.Lock()
	defer rep.m.Unlock()

	if rep.logLevel >= LogLevelVerbose {
		PrintInfoMessage(tag, fmt.Sprintf(message, args...))
	}
}

// -----------------------------------------------------------------------------

// AnyErrors returns whether or not any errors were reported.
func AnyErrors() bool {
	rep.m.Lock()
	defer rep.m.Unlock()

	return rep.errorCount > 0
}

// -----------------------------------------------------------------------------
// Below are all the "aesthetic" reporting functions that only run if the log
// level is verbose.  These provide additional information about the
// compilation process to the user so as to make the compiler more friendly.

// ReportCompileHeader reports the pre-compilation header: information about
// the compiler's current configuration (version, target, caching).
func ReportCompileHeader(target string, caching bool) {
	rep.m.Lock()
	defer rep.m.Unlock()

	if rep.logLevel >= LogLevelVerbose {
		displayCompileHeader(target, caching)
	}
}

// BeginPhase reports the beginning of a compilation phase.
func BeginPhase(phase string) {
	rep.m.Lock()
	defer rep.m.Unlock()

	if rep.logLevel >= LogLevelVerbose {
		displayBeginPhase(phase)
	}
}

// EndPhase reports the end of the current compilation phase.
func EndPhase(success bool) {
	rep.m.Lock()
	defer rep.m.Unlock()

	if rep.logLevel >= LogLevelVerbose {
		displayEndPhase(success)
	}
}

// ReportCompilationFinished reports the concluding message for compilation.
func ReportCompilationFinished(outputPath string) {
	rep.m.Lock()
	defer rep.m.Unlock()

	if rep.logLevel >= LogLevelVerbose {
		displayCompilationFinished(rep.errorCount == 0, rep.errorCount, rep.warningCount, outputPath)
	}
}
