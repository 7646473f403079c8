package config

import (
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sys/cpu"
)

// RelocMode is the relocation model of generated code.
type RelocMode int

const (
	RelocDefault RelocMode = iota
	RelocStatic
	RelocPIC
)

var relocModeNames = map[string]RelocMode{
	"default": RelocDefault,
	"static":  RelocStatic,
	"pic":     RelocPIC,
}

func (rm RelocMode) String() string {
	for name, mode := range relocModeNames {
		if mode == rm {
			return name
		}
	}

	return "default"
}

// Target describes the machine code is generated for.
type Target struct {
	// Triple is the LLVM target triple.
	Triple string

	// CPU is the target CPU model.  The value `host` selects the CPU the
	// compiler runs on.
	CPU string

	// Features are LLVM target features, eg. `+avx2`.
	Features []string

	// OptLevel is the optimization level, 0 to 3.
	OptLevel int

	// SizeLevel is the size optimization level, 0 to 2.
	SizeLevel int

	Reloc RelocMode
}

// HostTriple returns the LLVM triple of the machine the compiler runs on.
func HostTriple() string {
	arch := map[string]string{
		"amd64":   "x86_64",
		"386":     "i686",
		"arm64":   "aarch64",
		"arm":     "armv7",
		"riscv64": "riscv64",
	}[runtime.GOARCH]

	if arch == "" {
		arch = runtime.GOARCH
	}

	switch runtime.GOOS {
	case "darwin":
		return arch + "-apple-darwin"
	case "windows":
		return arch + "-pc-windows-msvc"
	default:
		return arch + "-unknown-" + runtime.GOOS + "-gnu"
	}
}

// DetectHostFeatures returns the LLVM target features of the host CPU.
func DetectHostFeatures() []string {
	var features []string
	add := func(has bool, name string) {
		if has {
			features = append(features, "+"+name)
		}
	}

	switch runtime.GOARCH {
	case "amd64", "386":
		add(cpu.X86.HasSSE2, "sse2")
		add(cpu.X86.HasSSE3, "sse3")
		add(cpu.X86.HasSSSE3, "ssse3")
		add(cpu.X86.HasSSE41, "sse4.1")
		add(cpu.X86.HasSSE42, "sse4.2")
		add(cpu.X86.HasPOPCNT, "popcnt")
		add(cpu.X86.HasAES, "aes")
		add(cpu.X86.HasAVX, "avx")
		add(cpu.X86.HasAVX2, "avx2")
		add(cpu.X86.HasFMA, "fma")
		add(cpu.X86.HasBMI1, "bmi")
		add(cpu.X86.HasBMI2, "bmi2")
	case "arm64":
		add(cpu.ARM64.HasASIMD, "neon")
		add(cpu.ARM64.HasAES, "aes")
		add(cpu.ARM64.HasSHA2, "sha2")
		add(cpu.ARM64.HasCRC32, "crc")
		add(cpu.ARM64.HasATOMICS, "lse")
	}

	return features
}

// resolveHost replaces a `host` CPU by a generic CPU with the detected host
// features.  Explicit features are kept and take precedence.
func (t *Target) resolveHost() {
	if t.CPU != "host" {
		return
	}

	t.CPU = "generic"

	explicit := make(map[string]struct{}, len(t.Features))
	for _, f := range t.Features {
		explicit[strings.TrimLeft(f, "+-")] = struct{}{}
	}

	for _, f := range DetectHostFeatures() {
		if _, ok := explicit[strings.TrimPrefix(f, "+")]; !ok {
			t.Features = append(t.Features, f)
		}
	}
}

// LLCArgs returns the `llc` command line flags selecting the target.
func (t *Target) LLCArgs() []string {
	args := []string{
		"-mtriple=" + t.Triple,
		fmt.Sprintf("-O%d", t.OptLevel),
	}

	if t.CPU != "" {
		args = append(args, "-mcpu="+t.CPU)
	}

	if len(t.Features) > 0 {
		args = append(args, "-mattr="+strings.Join(t.Features, ","))
	}

	switch t.Reloc {
	case RelocStatic:
		args = append(args, "-relocation-model=static")
	case RelocPIC:
		args = append(args, "-relocation-model=pic")
	}

	return args
}

func (t *Target) String() string {
	return fmt.Sprintf("%s (%s)", t.Triple, t.CPU)
}
