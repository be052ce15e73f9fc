package pyext

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/magefile/mage/sh"
	"go.trai.ch/zerr"
)

// Family identifies the accepted flag dialect of the host compiler.
type Family int

const (
	// FamilyUnix covers gcc, clang and compatible drivers.
	FamilyUnix Family = iota
	// FamilyMSVC covers the Visual Studio compiler (cl).
	FamilyMSVC
)

// String returns the family name used in diagnostics.
func (f Family) String() string {
	if f == FamilyMSVC {
		return "msvc"
	}
	return "unix"
}

// DefineFlag renders a preprocessor define in the family's dialect.
func (f Family) DefineFlag(define string) string {
	if f == FamilyMSVC {
		return "/D" + define
	}
	return "-D" + define
}

// Toolchain abstracts compiler and linker invocations so the prober and the
// source-building stage can be exercised with a fake toolchain in tests.
//
// All methods are synchronous, blocking calls; the pipeline cannot proceed
// until each completes. Each method returns the combined compiler output for
// diagnostics alongside any error.
type Toolchain interface {
	// Family returns the flag dialect of this toolchain.
	Family() Family

	// Compile compiles a single translation unit into an object file.
	Compile(ctx context.Context, source, object string, flags []string) (string, error)

	// LinkExecutable links object files into a throwaway executable using
	// the given strategy. Used only by link-probing trials.
	LinkExecutable(ctx context.Context, objects []string, output string, strategy LinkStrategy) (string, error)

	// LinkShared links object files into the final shared extension module.
	LinkShared(ctx context.Context, objects []string, output string, strategy LinkStrategy) (string, error)
}

// compilerCandidates lists compiler drivers in preference order per family.
var compilerCandidates = []string{"c++", "g++", "clang++", "cl"}

// CommandToolchain is the real Toolchain. It shells out to the ambient
// compiler discovered in PATH.
type CommandToolchain struct {
	// Compiler is the driver binary (c++, g++, clang++, cl).
	Compiler string

	// Env holds extra environment variables for every invocation.
	Env map[string]string

	family Family
}

// DetectToolchain locates a usable compiler driver in PATH and returns a
// CommandToolchain for it. The accepted flag set differs per toolchain
// family, so the family is fixed here and drives all later flag selection.
func DetectToolchain() (*CommandToolchain, error) {
	for _, candidate := range compilerCandidates {
		if _, err := exec.LookPath(candidate); err != nil {
			continue
		}
		family := FamilyUnix
		if candidate == "cl" {
			family = FamilyMSVC
		}
		return &CommandToolchain{Compiler: candidate, family: family}, nil
	}
	return nil, zerr.With(ErrMissingTools, "tools", strings.Join(compilerCandidates, ", "))
}

// Family returns the detected flag dialect.
func (t *CommandToolchain) Family() Family {
	return t.family
}

// Compile compiles source into object with the given extra flags.
func (t *CommandToolchain) Compile(ctx context.Context, source, object string, flags []string) (string, error) {
	var args []string
	if t.family == FamilyMSVC {
		args = append(args, "/nologo", "/c", source, "/Fo"+object)
	} else {
		args = append(args, "-c", source, "-o", object, "-fPIC")
	}
	args = append(args, flags...)
	return t.run(ctx, args)
}

// LinkExecutable links objects into a throwaway executable.
func (t *CommandToolchain) LinkExecutable(ctx context.Context, objects []string, output string, strategy LinkStrategy) (string, error) {
	var args []string
	if t.family == FamilyMSVC {
		args = append(args, "/nologo")
		args = append(args, objects...)
		args = append(args, "/Fe"+output)
	} else {
		args = append(args, objects...)
		args = append(args, "-o", output)
	}
	args = append(args, t.linkFlags(strategy)...)
	return t.run(ctx, args)
}

// LinkShared links objects into a shared library loadable by the Python
// runtime.
func (t *CommandToolchain) LinkShared(ctx context.Context, objects []string, output string, strategy LinkStrategy) (string, error) {
	var args []string
	if t.family == FamilyMSVC {
		args = append(args, "/nologo", "/LD")
		args = append(args, objects...)
		args = append(args, "/Fe"+output)
	} else {
		args = append(args, "-shared")
		if runtime.GOOS == "darwin" {
			// Python extension modules resolve interpreter symbols at load time.
			args = append(args, "-undefined", "dynamic_lookup")
		}
		args = append(args, objects...)
		args = append(args, "-o", output)
	}
	args = append(args, t.linkFlags(strategy)...)
	return t.run(ctx, args)
}

func (t *CommandToolchain) linkFlags(strategy LinkStrategy) []string {
	var flags []string
	if t.family == FamilyMSVC {
		for _, lib := range strategy.Libraries {
			flags = append(flags, lib+".lib")
		}
		// cl accepts /link only once; everything after it goes to the linker.
		if len(strategy.LibraryDirs) > 0 {
			flags = append(flags, "/link")
			for _, dir := range strategy.LibraryDirs {
				flags = append(flags, "/LIBPATH:"+dir)
			}
		}
		return flags
	}

	for _, dir := range strategy.LibraryDirs {
		flags = append(flags, "-L"+dir)
	}
	for _, lib := range strategy.Libraries {
		flags = append(flags, "-l"+lib)
	}
	return flags
}

// run invokes the compiler synchronously and returns its combined output.
func (t *CommandToolchain) run(ctx context.Context, args []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var out bytes.Buffer
	_, err := sh.Exec(t.Env, &out, &out, t.Compiler, args...)
	if err != nil {
		return out.String(), zerr.Wrap(err, fmt.Sprintf("%s %s", t.Compiler, strings.Join(args, " ")))
	}
	return out.String(), nil
}
