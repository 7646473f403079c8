package config

import (
	"errors"
	"fmt"
	"strings"

	"nativec/util"
)

// BinaryOption is a named option affecting the produced binary (eg. which
// garbage collector the runtime uses).  Every option parses its own values
// and carries a human-readable hint listing the values it accepts.
type BinaryOption struct {
	// The name of the option as written on the command line.
	Name string

	// Parser converts a textual value to the typed value of the option.  It
	// returns false if the value is not accepted.
	Parser func(value string) (interface{}, bool)

	// ValidValues describes the accepted values.
	ValidValues string
}

// binaryOptions is the table of all binary options, keyed by name.
var binaryOptions = registerBinaryOptions()

// registerBinaryOptions builds the binary option table.
func registerBinaryOptions() map[string]*BinaryOption {
	table := make(map[string]*BinaryOption)
	register := func(name string, parser func(string) (interface{}, bool), validValues string) {
		if _, ok := table[name]; ok {
			panic(fmt.Sprintf("binary option `%s` registered twice", name))
		}

		table[name] = &BinaryOption{Name: name, Parser: parser, ValidValues: validValues}
	}

	registerBool := func(name string) {
		register(name, parseBool, "true, false")
	}

	registerString := func(name string) {
		register(name, parseString, "any string")
	}

	registerBool("runtimeAssertionsEnabled")
	registerBool("gcMarkSingleThreaded")
	registerBool("disableMmap")
	registerBool("stripDebugInfoFromNativeLibs")
	registerBool("mimallocUseDefaultOptions")
	registerBool("mimallocUseCompaction")

	registerString("bundleId")
	registerString("bundleVersion")

	register(enumOption("memoryModel", memoryModelValues))
	register(enumOption("gc", gcValues))
	register(enumOption("sanitizer", sanitizerValues))
	register(enumOption("sourceInfoType", sourceInfoTypeValues))
	register(enumOption("runtimeAssertionsMode", runtimeAssertsModeValues))
	register(enumOption("gcSchedulerType", gcSchedulerTypeValues))

	return table
}

// BinaryOptions returns every binary option, sorted by name.
func BinaryOptions() []*BinaryOption {
	return util.Map(util.SortedKeys(binaryOptions), func(name string) *BinaryOption {
		return binaryOptions[name]
	})
}

// LookupBinaryOption returns the binary option with the given name.
func LookupBinaryOption(name string) (*BinaryOption, bool) {
	opt, ok := binaryOptions[name]
	return opt, ok
}

func parseBool(value string) (interface{}, bool) {
	switch strings.ToLower(value) {
	case "true":
		return true, true
	case "false":
		return false, true
	}

	return nil, false
}

func parseString(value string) (interface{}, bool) {
	return value, true
}

// -----------------------------------------------------------------------------

// enumValue is one value of an enumerated option: its canonical name and the
// aliases it may also be given by.
type enumValue[T ~int] struct {
	name    string
	aliases []string
	value   T
}

// enumOption creates the parser and valid values hint of an enumerated
// option.  Names and aliases are matched ignoring case.
func enumOption[T ~int](name string, values []enumValue[T]) (string, func(string) (interface{}, bool), string) {
	var hint []string
	for _, ev := range values {
		if len(ev.aliases) > 0 {
			hint = append(hint, ev.aliases[0])
		} else {
			hint = append(hint, strings.ToLower(ev.name))
		}
	}

	parser := func(value string) (interface{}, bool) {
		for _, ev := range values {
			if strings.EqualFold(ev.name, value) {
				return ev.value, true
			}

			for _, alias := range ev.aliases {
				if strings.EqualFold(alias, value) {
					return ev.value, true
				}
			}
		}

		return nil, false
	}

	return name, parser, strings.Join(hint, ", ")
}

// MemoryModel is the memory model of the runtime.
type MemoryModel int

const (
	MemoryModelStrict MemoryModel = iota
	MemoryModelRelaxed
	MemoryModelExperimental
)

var memoryModelValues = []enumValue[MemoryModel]{
	{name: "STRICT", value: MemoryModelStrict},
	{name: "RELAXED", value: MemoryModelRelaxed},
	{name: "EXPERIMENTAL", value: MemoryModelExperimental},
}

// GC is the garbage collector linked into the binary.
type GC int

const (
	GCNoop GC = iota
	GCStopTheWorldMarkAndSweep
	GCParallelMarkConcurrentSweep
	GCConcurrentMarkAndSweep
)

var gcValues = []enumValue[GC]{
	{name: "NOOP", aliases: []string{"noop"}, value: GCNoop},
	{name: "STOP_THE_WORLD_MARK_AND_SWEEP", aliases: []string{"stwms"}, value: GCStopTheWorldMarkAndSweep},
	{name: "PARALLEL_MARK_CONCURRENT_SWEEP", aliases: []string{"pmcs"}, value: GCParallelMarkConcurrentSweep},
	{name: "CONCURRENT_MARK_AND_SWEEP", aliases: []string{"cms"}, value: GCConcurrentMarkAndSweep},
}

// Sanitizer is the sanitizer the binary is instrumented with.
type Sanitizer int

const (
	SanitizerAddress Sanitizer = iota
	SanitizerThread
)

var sanitizerValues = []enumValue[Sanitizer]{
	{name: "ADDRESS", aliases: []string{"address", "asan"}, value: SanitizerAddress},
	{name: "THREAD", aliases: []string{"thread", "tsan"}, value: SanitizerThread},
}

// SourceInfoType is how stack traces are symbolicated.
type SourceInfoType int

const (
	SourceInfoNoop SourceInfoType = iota
	SourceInfoLibbacktrace
	SourceInfoCoreSymbolication
)

var sourceInfoTypeValues = []enumValue[SourceInfoType]{
	{name: "NOOP", aliases: []string{"noop"}, value: SourceInfoNoop},
	{name: "LIBBACKTRACE", aliases: []string{"libbacktrace"}, value: SourceInfoLibbacktrace},
	{name: "CORESYMBOLICATION", aliases: []string{"coresymbolication"}, value: SourceInfoCoreSymbolication},
}

// RuntimeAssertsMode is what failed runtime assertions do.
type RuntimeAssertsMode int

const (
	RuntimeAssertsIgnore RuntimeAssertsMode = iota
	RuntimeAssertsLog
	RuntimeAssertsPanic
)

var runtimeAssertsModeValues = []enumValue[RuntimeAssertsMode]{
	{name: "IGNORE", aliases: []string{"ignore"}, value: RuntimeAssertsIgnore},
	{name: "LOG", aliases: []string{"log"}, value: RuntimeAssertsLog},
	{name: "PANIC", aliases: []string{"panic"}, value: RuntimeAssertsPanic},
}

// GCSchedulerType is the policy deciding when collections run.
type GCSchedulerType int

const (
	GCSchedulerManual GCSchedulerType = iota
	GCSchedulerAdaptive
	GCSchedulerAggressive
)

var gcSchedulerTypeValues = []enumValue[GCSchedulerType]{
	{name: "MANUAL", aliases: []string{"manual", "disabled"}, value: GCSchedulerManual},
	{name: "ADAPTIVE", aliases: []string{"adaptive", "with_timer"}, value: GCSchedulerAdaptive},
	{name: "AGGRESSIVE", aliases: []string{"aggressive", "on_safe_points"}, value: GCSchedulerAggressive},
}

// -----------------------------------------------------------------------------

// BinaryOptionValues holds the parsed values of the binary options that were
// given.  Options that were not given keep their defaults.
type BinaryOptionValues map[string]interface{}

// ParseBinaryOptions parses `name=value` option assignments.  All invalid
// assignments are reported together.
func ParseBinaryOptions(assignments []string) (BinaryOptionValues, error) {
	values := make(BinaryOptionValues)
	var errs []error

	for _, assignment := range assignments {
		name, value, ok := strings.Cut(assignment, "=")
		if !ok {
			errs = append(errs, fmt.Errorf("binary option `%s` must be of the form name=value", assignment))
			continue
		}

		name = strings.TrimSpace(name)
		opt, ok := binaryOptions[name]
		if !ok {
			errs = append(errs, fmt.Errorf("unknown binary option `%s`", name))
			continue
		}

		parsed, ok := opt.Parser(strings.TrimSpace(value))
		if !ok {
			errs = append(errs, fmt.Errorf(
				"invalid value `%s` for binary option `%s`; valid values: %s",
				value, name, opt.ValidValues,
			))
			continue
		}

		values[name] = parsed
	}

	return values, errors.Join(errs...)
}

// lookup returns the value of an option or `def` if it was not given.
func lookup[T any](bov BinaryOptionValues, name string, def T) T {
	if v, ok := bov[name]; ok {
		return v.(T)
	}

	return def
}

// Bool returns the value of a boolean option.
func (bov BinaryOptionValues) Bool(name string) bool {
	return lookup(bov, name, false)
}

// Str returns the value of a string option.
func (bov BinaryOptionValues) Str(name string) string {
	return lookup(bov, name, "")
}

func (bov BinaryOptionValues) MemoryModel() MemoryModel {
	return lookup(bov, "memoryModel", MemoryModelExperimental)
}

func (bov BinaryOptionValues) GC() GC {
	return lookup(bov, "gc", GCParallelMarkConcurrentSweep)
}

// Sanitizer returns the requested sanitizer, if any.
func (bov BinaryOptionValues) Sanitizer() (Sanitizer, bool) {
	v, ok := bov["sanitizer"]
	if !ok {
		return 0, false
	}

	return v.(Sanitizer), true
}

func (bov BinaryOptionValues) SourceInfoType() SourceInfoType {
	return lookup(bov, "sourceInfoType", SourceInfoNoop)
}

func (bov BinaryOptionValues) RuntimeAssertsMode() RuntimeAssertsMode {
	return lookup(bov, "runtimeAssertionsMode", RuntimeAssertsIgnore)
}

// GCSchedulerType returns the GC scheduler.  It defaults to manual scheduling
// when there is no collector to schedule.
func (bov BinaryOptionValues) GCSchedulerType() GCSchedulerType {
	def := GCSchedulerAdaptive
	if bov.GC() == GCNoop {
		def = GCSchedulerManual
	}

	return lookup(bov, "gcSchedulerType", def)
}
