package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBinaryOptions_Values(t *testing.T) {
	values, err := ParseBinaryOptions([]string{
		"gc=cms",
		"memoryModel=Strict",
		"sanitizer=thread",
		"gcMarkSingleThreaded=TRUE",
		"bundleId=org.example.app",
		"runtimeAssertionsMode=PANIC",
	})
	require.NoError(t, err)

	assert.Equal(t, GCConcurrentMarkAndSweep, values.GC())
	assert.Equal(t, MemoryModelStrict, values.MemoryModel())
	assert.True(t, values.Bool("gcMarkSingleThreaded"))
	assert.False(t, values.Bool("disableMmap"))
	assert.Equal(t, "org.example.app", values.Str("bundleId"))
	assert.Equal(t, RuntimeAssertsPanic, values.RuntimeAssertsMode())

	san, ok := values.Sanitizer()
	assert.True(t, ok)
	assert.Equal(t, SanitizerThread, san)
}

func TestParseBinaryOptions_Defaults(t *testing.T) {
	values, err := ParseBinaryOptions(nil)
	require.NoError(t, err)

	assert.Equal(t, GCParallelMarkConcurrentSweep, values.GC())
	assert.Equal(t, MemoryModelExperimental, values.MemoryModel())
	assert.Equal(t, SourceInfoNoop, values.SourceInfoType())
	assert.Equal(t, GCSchedulerAdaptive, values.GCSchedulerType())

	_, ok := values.Sanitizer()
	assert.False(t, ok)
}

func TestParseBinaryOptions_SchedulerFollowsGC(t *testing.T) {
	values, err := ParseBinaryOptions([]string{"gc=noop"})
	require.NoError(t, err)
	assert.Equal(t, GCSchedulerManual, values.GCSchedulerType())

	values, err = ParseBinaryOptions([]string{"gc=noop", "gcSchedulerType=aggressive"})
	require.NoError(t, err)
	assert.Equal(t, GCSchedulerAggressive, values.GCSchedulerType())
}

func TestParseBinaryOptions_RejectionQuotesValidValues(t *testing.T) {
	_, err := ParseBinaryOptions([]string{"gc=generational"})
	assert.EqualError(t, err, "invalid value `generational` for binary option `gc`; valid values: noop, stwms, pmcs, cms")

	_, err = ParseBinaryOptions([]string{"disableMmap=maybe"})
	assert.ErrorContains(t, err, "valid values: true, false")
}

func TestParseBinaryOptions_ReportsAllErrors(t *testing.T) {
	_, err := ParseBinaryOptions([]string{"nope=1", "gc", "sanitizer=memory"})
	require.Error(t, err)

	assert.Contains(t, err.Error(), "unknown binary option `nope`")
	assert.Contains(t, err.Error(), "must be of the form name=value")
	assert.Contains(t, err.Error(), "valid values: address, thread")
}

func TestBinaryOptions_Sorted(t *testing.T) {
	opts := BinaryOptions()
	require.NotEmpty(t, opts)

	for i := 1; i < len(opts); i++ {
		assert.Less(t, opts[i-1].Name, opts[i].Name)
	}

	opt, ok := LookupBinaryOption("sourceInfoType")
	require.True(t, ok)
	assert.Equal(t, "noop, libbacktrace, coresymbolication", opt.ValidValues)
}
