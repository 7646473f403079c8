package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/pterm/pterm"
)

var (
	SuccessColorFG = pterm.FgLightGreen
	SuccessStyleBG = pterm.NewStyle(pterm.BgLightGreen, pterm.FgBlack)
	WarnColorFG    = pterm.FgYellow
	WarnStyleBG    = pterm.NewStyle(pterm.BgYellow, pterm.FgBlack)
	ErrorColorFG   = pterm.FgRed
	ErrorStyleBG   = pterm.NewStyle(pterm.BgRed, pterm.FgWhite)
	InfoColorFG    = SuccessColorFG
	InfoStyleBG    = SuccessStyleBG
	DebugColorFG   = pterm.FgGray
)

// PrintErrorMessage prints a standard Go error to the console.
func PrintErrorMessage(tag string, err error) {
	ErrorStyleBG.Print(tag)
	ErrorColorFG.Println(" " + err.Error())
}

// PrintWarningMessage prints a warning message to the console.
func PrintWarningMessage(tag, msg string) {
	WarnStyleBG.Print(tag)
	WarnColorFG.Println(" " + msg)
}

// PrintInfoMessage prints an informational message to the user.
func PrintInfoMessage(tag, msg string) {
	InfoStyleBG.Print(tag)
	InfoColorFG.Println(" " + msg)
}

// -----------------------------------------------------------------------------

const icePostlude = `
This error was not supposed to happen: it is a bug in the compiler.
Please report it along with the lowering phase and declaration shown above.`

// displayICE displays an internal compiler error message.
func displayICE(ie *InternalError) {
	fmt.Print("\n\n")
	ErrorStyleBG.Print("Internal Compiler Error")
	ErrorColorFG.Println(" " + ie.Message)

	if ie.Phase != "" {
		fmt.Println("  phase:       " + ie.Phase)
	}

	if ie.Declaration != "" {
		fmt.Println("  declaration: " + ie.Declaration)
	}

	InfoColorFG.Println(icePostlude)
}

// displayFatal displays a fatal error message.
func displayFatal(message string) {
	fmt.Print("\n")
	ErrorStyleBG.Print("Fatal Error")
	ErrorColorFG.Println(" " + message)
}

// displayCompileMessage displays a compilation error or warning.
func displayCompileMessage(isError bool, filePath string, span TextSpan, message string) {
	if isError {
		ErrorStyleBG.Print("Compile Error")
	} else {
		WarnStyleBG.Print("Compile Warning")
	}

	fmt.Print(" ")

	if span.IsDefined() {
		InfoColorFG.Printf("%s@%d", filePath, span.StartOffset)
	} else {
		InfoColorFG.Print(filePath)
	}

	fmt.Println(": " + message)
}

// displayBuildError displays the failure of an external tool.  The raw tool
// output is printed unmodified.
func displayBuildError(be *BuildError) {
	ErrorStyleBG.Print(be.Tool + " Error")
	if be.Err != nil {
		ErrorColorFG.Println(" " + be.Err.Error())
	} else {
		fmt.Println()
	}

	if be.Output != "" {
		fmt.Println(be.Output)
	}

	if be.Hint != "" {
		WarnStyleBG.Print("Hint")
		if be.Library != "" {
			WarnColorFG.Printf(" (%s)", be.Library)
		}
		WarnColorFG.Println(" " + be.Hint)
	}
}

// displayStdError displays a standard Go error.
func displayStdError(tag string, err error) {
	PrintErrorMessage(tag, err)
}

// displayDebug displays a debug trace.
func displayDebug(tag, msg string) {
	DebugColorFG.Printf("[%s] %s\n", tag, msg)
}

// -----------------------------------------------------------------------------

// displayCompileHeader displays all the compiler information before starting
// compilation.
func displayCompileHeader(target string, caching bool) {
	fmt.Print("nativec ")
	InfoColorFG.Print("v" + compilerVersion)
	fmt.Print(" -- target: ")
	InfoColorFG.Println(target)

	if caching {
		fmt.Println("compiling using caches")
	}
}

// compilerVersion is set by the driver so that this package does not need to
// depend on `common`.
var compilerVersion = "dev"

// SetCompilerVersion sets the version shown in the compile header.
func SetCompilerVersion(version string) {
	compilerVersion = version
}

// phaseSpinner stores the current phase spinner.
var phaseSpinner *pterm.SpinnerPrinter
var currentPhase string
var phaseStartTime time.Time

const maxPhaseLength = len("InnerClassConstructorCalls")

// displayBeginPhase displays the beginning of a compilation phase.
func displayBeginPhase(phase string) {
	currentPhase = phase
	phaseText := phase + "..." + strings.Repeat(" ", padding(phase))

	spinner := pterm.DefaultSpinner.WithStyle(pterm.NewStyle(InfoColorFG))
	spinner.SuccessPrinter = phasePrinter(SuccessStyleBG, "Done")
	spinner.FailPrinter = phasePrinter(ErrorStyleBG, "Fail")

	started, err := spinner.Start(phaseText)
	if err != nil {
		// the phase ends with a plain line instead
		phaseSpinner = nil
		pterm.Println(phaseText)
	} else {
		phaseSpinner = started
	}

	phaseStartTime = time.Now()
}

// phasePrinter returns the printer of the line ending a phase.
func phasePrinter(style *pterm.Style, text string) *pterm.PrefixPrinter {
	return &pterm.PrefixPrinter{
		MessageStyle: pterm.NewStyle(pterm.FgDefault),
		Prefix: pterm.Prefix{
			Style: style,
			Text:  text,
		},
	}
}

// displayEndPhase displays the end of a compilation phase.
func displayEndPhase(success bool) {
	if currentPhase == "" {
		return
	}

	name := currentPhase + strings.Repeat(" ", padding(currentPhase))
	timing := fmt.Sprintf("(%.3fs)", time.Since(phaseStartTime).Seconds())

	switch {
	case phaseSpinner != nil && success:
		phaseSpinner.Success(name, timing)
	case phaseSpinner != nil:
		phaseSpinner.Fail(name)
	case success:
		phasePrinter(SuccessStyleBG, "Done").Println(name, timing)
	default:
		phasePrinter(ErrorStyleBG, "Fail").Println(name)
	}

	phaseSpinner = nil
	currentPhase = ""
}

// padding returns the number of spaces needed to align phase timings.
func padding(phase string) int {
	if len(phase) > maxPhaseLength {
		return 2
	}

	return maxPhaseLength - len(phase) + 2
}

// displayCompilationFinished displays a compilation finished message.
func displayCompilationFinished(success bool, errorCount, warningCount int, outputPath string) {
	fmt.Print("\n")

	if success {
		SuccessColorFG.Print("All done! ")
	} else {
		ErrorColorFG.Print("Oh no! ")
	}

	fmt.Print("(")

	switch errorCount {
	case 0:
		SuccessColorFG.Print(0)
		fmt.Print(" errors, ")
	case 1:
		ErrorColorFG.Print(1)
		fmt.Print(" error, ")
	default:
		ErrorColorFG.Print(errorCount)
		fmt.Print(" errors, ")
	}

	switch warningCount {
	case 0:
		SuccessColorFG.Print(0)
		fmt.Println(" warnings)")
	case 1:
		WarnColorFG.Print(1)
		fmt.Println(" warning)")
	default:
		WarnColorFG.Print(warningCount)
		fmt.Println(" warnings)")
	}

	if success && outputPath != "" {
		fmt.Print("output written to ")
		InfoColorFG.Println(outputPath)
	}
}
