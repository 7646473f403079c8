package report

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecover_InternalErrorGetsPhase(t *testing.T) {
	run := func() (err error) {
		defer Recover("Lateinit", "a.kt", &err)
		ICE("missing body")
		return nil
	}

	err := run()
	require.Error(t, err)

	var ie *InternalError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "Lateinit", ie.Phase)
	assert.Equal(t, "internal compiler error in Lateinit: missing body", err.Error())
}

func TestRecover_KeepsExplicitPhase(t *testing.T) {
	run := func() (err error) {
		defer Recover("Outer", "a.kt", &err)
		ICEAt("Inner", "fun f", "bad %d", 1)
		return nil
	}

	assert.Equal(t, "internal compiler error in Inner at fun f: bad 1", run().Error())
}

func TestRecover_CompileErrorGetsFile(t *testing.T) {
	run := func() (err error) {
		defer Recover("DefaultArgumentStubs", "lib/a.kt", &err)
		panic(Raise(TextSpan{StartOffset: 10, EndOffset: 12}, "unsupported default for %s", "xs"))
	}

	err := run()
	var lce *LocalCompileError
	require.True(t, errors.As(err, &lce))
	assert.Equal(t, "lib/a.kt:10: unsupported default for xs", err.Error())
}

func TestRecover_PropagatesForeignPanics(t *testing.T) {
	assert.PanicsWithValue(t, "boom", func() {
		var err error
		defer Recover("p", "f", &err)
		panic("boom")
	})
}

func TestBuildError_Message(t *testing.T) {
	be := &BuildError{
		Tool:    "linker",
		Output:  "undefined symbol: curl_easy_init",
		Library: "libcurl",
		Hint:    "install libcurl-dev",
		Err:     fmt.Errorf("exit status 1"),
	}

	assert.Equal(t,
		"linker failed (exit status 1):\nundefined symbol: curl_easy_init\nhint (library libcurl): install libcurl-dev",
		be.Error(),
	)
	assert.Equal(t, "exit status 1", errors.Unwrap(be).Error())
}

func TestTextSpan_IsDefined(t *testing.T) {
	assert.False(t, NoSpan.IsDefined())
	assert.True(t, TextSpan{StartOffset: 0, EndOffset: 1}.IsDefined())
}
