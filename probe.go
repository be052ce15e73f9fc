package pyext

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/zerr"
)

// Prober empirically tests whether the toolchain supports a compiler flag or
// a link strategy by compiling (and, for link strategies, linking) a
// disposable translation unit.
//
// Probing is inherently sequential: each trial owns a temporary directory
// that is removed on every exit path.
type Prober struct {
	Toolchain Toolchain
	Reporter  Reporter
}

// HasFlag reports whether the compiler accepts flag. The trial compiles a
// trivial translation unit; any diagnostic failure means unsupported.
func (p *Prober) HasFlag(ctx context.Context, flag string) bool {
	_, err := p.trial(ctx, trivialProgram, []string{flag}, nil)
	return err == nil
}

// SelectStandardFlag probes candidates in order, newest and most preferred
// first, and returns the first supported one. This is first-match-wins, not
// best-of-N: a supported first candidate is selected regardless of later
// candidates. Returns ErrUnsupportedToolchain when none is supported.
func (p *Prober) SelectStandardFlag(ctx context.Context, candidates []string) (string, error) {
	for _, flag := range candidates {
		if p.HasFlag(ctx, flag) {
			return flag, nil
		}
	}
	return "", zerr.With(ErrUnsupportedToolchain, "candidates", strings.Join(candidates, ", "))
}

// ProbeLink determines how the extension can link against its required
// libraries. The static trial runs first, with the static-linking defines
// set; on failure a plain dynamic trial follows. Both trials are recorded
// as attempts. When both fail, ErrLinkFailure carries the accumulated
// diagnostics of the two trials.
func (p *Prober) ProbeLink(ctx context.Context, cfg *Config) (LinkStrategy, []Attempt, error) {
	family := p.Toolchain.Family()
	source := linkTrialProgram(cfg.ProbeHeaders)

	var attempts []Attempt

	static := LinkStrategy{
		Kind:        LinkStatic,
		Libraries:   cfg.Libraries,
		LibraryDirs: cfg.LibraryDirs,
		Defines:     cfg.StaticDefines,
	}
	staticFlags := includeFlags(family, cfg.IncludeDirs)
	for _, define := range static.Defines {
		staticFlags = append(staticFlags, family.DefineFlag(define))
	}

	diag, err := p.trial(ctx, source, staticFlags, &static)
	attempts = append(attempts, Attempt{Stage: StageStaticLink, Success: err == nil, Err: err, Diagnostics: diag})
	if err == nil {
		return static, attempts, nil
	}
	p.Reporter.Noticef("Static linking failed: %v", err)

	dynamic := LinkStrategy{
		Kind:        LinkDynamic,
		Libraries:   cfg.Libraries,
		LibraryDirs: cfg.LibraryDirs,
	}
	dynDiag, dynErr := p.trial(ctx, source, includeFlags(family, cfg.IncludeDirs), &dynamic)
	attempts = append(attempts, Attempt{Stage: StageDynamicLink, Success: dynErr == nil, Err: dynErr, Diagnostics: dynDiag})
	if dynErr == nil {
		return dynamic, attempts, nil
	}
	p.Reporter.Noticef("Dynamic linking failed: %v", dynErr)

	combined := strings.TrimSpace(diag + "\n" + dynDiag)
	return LinkStrategy{}, attempts, zerr.With(ErrLinkFailure, "diagnostics", combined)
}

// trial compiles source in a scratch directory and, when link is non-nil,
// links the object into a throwaway executable. The scratch directory is
// deleted on every exit path.
func (p *Prober) trial(ctx context.Context, source string, compileFlags []string, link *LinkStrategy) (string, error) {
	dir, err := os.MkdirTemp("", "pyext-probe-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)

	srcPath := filepath.Join(dir, "trial.cpp")
	if err := os.WriteFile(srcPath, []byte(source), 0o600); err != nil {
		return "", err
	}

	object := objectName(dir, srcPath, p.Toolchain.Family())
	diag, err := p.Toolchain.Compile(ctx, srcPath, object, compileFlags)
	if err != nil {
		return diag, err
	}
	if link == nil {
		return diag, nil
	}

	exe := filepath.Join(dir, "trial")
	if p.Toolchain.Family() == FamilyMSVC {
		exe += ".exe"
	}
	linkDiag, err := p.Toolchain.LinkExecutable(ctx, []string{object}, exe, *link)
	return strings.TrimSpace(diag + "\n" + linkDiag), err
}

const trivialProgram = "int main(int argc, char **argv) { return 0; }\n"

// linkTrialProgram generates the translation unit for link trials: it
// includes each required library header and does nothing else.
func linkTrialProgram(headers []string) string {
	var b strings.Builder
	for _, header := range headers {
		fmt.Fprintf(&b, "#include <%s>\n", header)
	}
	b.WriteString("int main() { return 0; }\n")
	return b.String()
}

func includeFlags(family Family, dirs []string) []string {
	var flags []string
	for _, dir := range dirs {
		if family == FamilyMSVC {
			flags = append(flags, "/I"+dir)
		} else {
			flags = append(flags, "-I"+dir)
		}
	}
	return flags
}
