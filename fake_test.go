package pyext

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// fakeToolchain deterministically accepts or rejects flags and link
// strategies so the prober and the pipeline can be exercised without a real
// compiler.
type fakeToolchain struct {
	family Family

	rejectFlags   []string // compile flags that fail the invocation
	failSources   bool     // real (non-trial) source compiles fail
	failStatic    bool     // static link trials fail
	failDynamic   bool     // dynamic link trials fail
	skipOutput    bool     // LinkShared claims success without writing output
	sharedContent []byte   // bytes written by LinkShared

	compiledFlags [][]string // flags of every Compile call, in order
	linkedKinds   []LinkKind // strategy of every link call, in order
}

func (f *fakeToolchain) Family() Family {
	return f.family
}

func (f *fakeToolchain) Compile(_ context.Context, source, object string, flags []string) (string, error) {
	f.compiledFlags = append(f.compiledFlags, flags)

	for _, flag := range flags {
		for _, rejected := range f.rejectFlags {
			if flag == rejected {
				return "error: unrecognized command-line option " + flag, errors.New("compile failed")
			}
		}
	}

	if f.failSources && filepath.Base(source) != "trial.cpp" {
		return "fatal error: curl/curl.h: No such file or directory", errors.New("compile failed")
	}

	// Trial objects must exist for the link step to reference them.
	if strings.HasPrefix(filepath.Base(filepath.Dir(object)), "pyext-") {
		_ = os.WriteFile(object, []byte("obj"), 0o600)
	}
	return "", nil
}

func (f *fakeToolchain) LinkExecutable(_ context.Context, _ []string, _ string, strategy LinkStrategy) (string, error) {
	f.linkedKinds = append(f.linkedKinds, strategy.Kind)

	if strategy.Kind == LinkStatic && f.failStatic {
		return "ld: cannot find -lcurl (static)", errors.New("link failed")
	}
	if strategy.Kind == LinkDynamic && f.failDynamic {
		return "ld: cannot find -lcurl", errors.New("link failed")
	}
	return "", nil
}

func (f *fakeToolchain) LinkShared(_ context.Context, _ []string, output string, strategy LinkStrategy) (string, error) {
	f.linkedKinds = append(f.linkedKinds, strategy.Kind)

	if f.skipOutput {
		return "", nil
	}

	content := f.sharedContent
	if content == nil {
		content = []byte("fake shared object")
	}
	if err := os.WriteFile(output, content, 0o755); err != nil {
		return "", err
	}
	return "", nil
}

// recordingConsent returns a fixed decision and counts how often the
// pipeline consulted it.
type recordingConsent struct {
	decision ConsentDecision
	asked    int
}

func (r *recordingConsent) Consent(context.Context, string) ConsentDecision {
	r.asked++
	return r.decision
}
