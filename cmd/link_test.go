package cmd

import (
	"testing"

	"nativec/deps"

	"github.com/stretchr/testify/assert"
)

func TestImplicatedLibrary(t *testing.T) {
	base := &deps.Library{Name: "base"}
	io := &deps.Library{Name: "io"}
	curl := &deps.Library{Name: "curl-interop"}
	libs := []*deps.Library{base, io, curl}

	binaries := map[string][]string{
		"base": {"/cache/base-per-file-cache/base.0123/bin/base.a"},
	}

	cases := []struct {
		output string
		want   *deps.Library
	}{
		{"undefined reference to `curl_easy_init' in curl-interop", curl},
		{"ld: io.o: relocation overflow", io},
		{"ld: /cache/base-per-file-cache/base.0123/bin/base.a: bad archive", base},
		{"iostream: no such file", nil},
		{"undefined reference to `io_write'", nil},
		{"", nil},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, implicatedLibrary(tc.output, libs, binaries), tc.output)
	}
}

func TestImplicatedLibrary_FirstLibraryWins(t *testing.T) {
	base := &deps.Library{Name: "base", SetupHint: "rebuild base"}
	io := &deps.Library{Name: "io"}

	lib := implicatedLibrary("io.o: undefined symbol from base", []*deps.Library{base, io}, nil)
	assert.Same(t, base, lib)
}

func TestMentionsWord(t *testing.T) {
	cases := []struct {
		text, word string
		want       bool
	}{
		{"ld: c++: not found", "c++", true},
		{"ld: c++abi: not found", "c++", false},
		{"cannot find (io)", "io", true},
		{"cannot find libio-dev", "io", false},
		{"cannot find io_x but io", "io", true},
		{"io", "io", true},
		{"ioio", "io", false},
		{"a.b", "a*b", false},
		{"anything", "", false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, mentionsWord(tc.text, tc.word), "%q in %q", tc.word, tc.text)
	}
}
