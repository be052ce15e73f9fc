package pyext

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"go.trai.ch/zerr"
)

// State is the pipeline's position in the fallback chain.
type State int

const (
	// StateInit is the initial state before Run.
	StateInit State = iota
	// StateProbing runs toolchain discovery and capability probing,
	// including the static-then-dynamic link-fallback trials. There is no
	// separate link-fallback state: both trials are part of selecting the
	// build options, before any real source is compiled.
	StateProbing
	// StateSourceBuilding compiles the real extension sources.
	StateSourceBuilding
	// StateConsentPending waits for the user's yes/no decision.
	StateConsentPending
	// StatePrebuiltResolving looks up the platform fingerprint in the
	// artifact repository.
	StatePrebuiltResolving
	// StateInstalled is the successful terminal state.
	StateInstalled
	// StateFailed is the failing terminal state.
	StateFailed
)

// String returns the state name used in diagnostics.
func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateProbing:
		return "Probing"
	case StateSourceBuilding:
		return "SourceBuilding"
	case StateConsentPending:
		return "ConsentPending"
	case StatePrebuiltResolving:
		return "PrebuiltResolving"
	case StateInstalled:
		return "Installed"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// PipelineOptions carries the injectable collaborators of a Pipeline. Any
// nil field gets a production default in NewPipeline.
type PipelineOptions struct {
	// Toolchain runs compiler and linker invocations. Defaults to the
	// compiler discovered in PATH.
	Toolchain Toolchain

	// Repo is the prebuilt-artifact repository. Defaults to the configured
	// repository directory.
	Repo *Repository

	// Consent answers the fallback question. Defaults to a terminal prompt
	// on stdin/stdout.
	Consent ConsentProvider

	// Reporter receives diagnostics. Defaults to stderr.
	Reporter Reporter

	// Fingerprint is the platform fingerprint computed at process start.
	Fingerprint Fingerprint
}

// Pipeline sequences capability probing, source compilation, the link
// fallbacks, the consent gate and prebuilt installation into one run.
//
// A Pipeline performs a single build invocation and is not safe for
// concurrent use. All stages execute sequentially; every external compiler
// invocation blocks until it completes.
type Pipeline struct {
	cfg       *Config
	toolchain Toolchain
	repo      *Repository
	consent   ConsentProvider
	reporter  Reporter
	fp        Fingerprint

	state    State
	attempts []Attempt
}

// NewPipeline creates a pipeline for cfg, defaulting any collaborator left
// nil in opts.
func NewPipeline(cfg *Config, opts PipelineOptions) *Pipeline {
	reporter := opts.Reporter
	if reporter == nil {
		reporter = NewWriterReporter(os.Stderr, cfg.Quiet)
	}

	consent := opts.Consent
	if consent == nil {
		consent = &TerminalConsent{In: os.Stdin, Out: os.Stdout}
	}

	repo := opts.Repo
	if repo == nil {
		repo = &Repository{Dir: cfg.RepositoryDir}
	}

	return &Pipeline{
		cfg:       cfg,
		toolchain: opts.Toolchain,
		repo:      repo,
		consent:   consent,
		reporter:  reporter,
		fp:        opts.Fingerprint,
		state:     StateInit,
	}
}

// State returns the pipeline's current state.
func (p *Pipeline) State() State {
	return p.state
}

// Run executes the fallback chain and reports the final outcome.
//
// Stage failures are caught locally, reported, and drive the next fallback
// transition; only the terminal failure is returned. The returned Report is
// non-nil even on failure and records every attempt made.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	p.reporter.Infof("%s: Attempting to build from source...", p.cfg.Module)

	installedPath, buildErr := p.BuildFromSource(ctx)
	if buildErr == nil {
		p.state = StateInstalled
		p.reporter.Infof("%s: Successfully built from source", p.cfg.Module)
		return p.report(installedPath, false), nil
	}

	// Recovered failures and the remediation diagnostic must reach the user
	// even in quiet mode.
	p.reporter.Noticef("%v", buildErr)
	p.reporter.Noticef("%s", p.cfg.RemediationNotice())
	p.reporter.Noticef("Trying pre-built binary...")

	p.state = StateConsentPending
	question := fmt.Sprintf("%s: Would you like to use a pre-built binary instead?", p.cfg.Module)
	decision := p.consent.Consent(ctx, question)
	if decision.Source == SourceDefaultNonInteractive {
		p.reporter.Noticef("%s: Non-interactive environment detected, defaulting to Yes", p.cfg.Module)
	}
	if !decision.Granted {
		p.state = StateFailed
		p.reporter.Noticef("%s: User chose not to use a pre-built binary", p.cfg.Module)
		return p.report("", false), zerr.With(ErrUserDeclined, "module", p.cfg.Module)
	}

	p.state = StatePrebuiltResolving
	artifact, err := p.repo.Lookup(p.cfg.Module, p.fp)
	if err != nil {
		p.state = StateFailed
		p.recordAttempt(Attempt{Stage: StagePrebuiltInstall, Err: err})
		p.reporter.Noticef("%s ERROR: No pre-built binary available for %s", p.cfg.Module, p.fp)
		p.reporter.Noticef("%s", p.cfg.RemediationNotice())
		return p.report("", false), err
	}

	dest := p.installPath()
	if err := copyFile(artifact.Path, dest); err != nil {
		p.state = StateFailed
		err = zerr.Wrap(err, fmt.Sprintf("failed to install %s", artifact.Path))
		p.recordAttempt(Attempt{Stage: StagePrebuiltInstall, Err: err})
		return p.report("", false), err
	}

	p.state = StateInstalled
	p.recordAttempt(Attempt{Stage: StagePrebuiltInstall, Success: true})
	p.reporter.Noticef("%s: Successfully installed using pre-built binary %s", p.cfg.Module, artifact.Path)
	p.reporter.Noticef("%s: Note: Using pre-built binary because build from source failed", p.cfg.Module)
	return p.report(dest, true), nil
}

// BuildFromSource probes the toolchain and compiles the extension sources
// with the selected options. On success the compiled module is already at
// the build output location and its path is returned.
//
// The producer reuses this stage directly, so everything up to and
// including installation must behave identically for both tools.
func (p *Pipeline) BuildFromSource(ctx context.Context) (string, error) {
	p.state = StateProbing

	if p.toolchain == nil {
		if err := CheckRequiredTools(BuildToolRequirements(p.cfg)); err != nil {
			p.recordAttempt(Attempt{Stage: StageSourceCompile, Err: err})
			return "", err
		}
		toolchain, err := DetectToolchain()
		if err != nil {
			p.recordAttempt(Attempt{Stage: StageSourceCompile, Err: err})
			return "", err
		}
		p.toolchain = toolchain
	}

	compileFlags, strategy, err := p.probeOptions(ctx)
	if err != nil {
		return "", err
	}

	p.state = StateSourceBuilding
	return p.compileAndLink(ctx, compileFlags, strategy)
}

// probeOptions selects the compile flags and link strategy the toolchain
// supports.
func (p *Pipeline) probeOptions(ctx context.Context) ([]string, LinkStrategy, error) {
	prober := &Prober{Toolchain: p.toolchain, Reporter: p.reporter}
	family := p.toolchain.Family()

	var flags []string
	flags = append(flags, includeFlags(family, p.cfg.IncludeDirs)...)

	if family == FamilyMSVC {
		flags = append(flags, "/EHsc")
	} else if runtime.GOOS == "darwin" {
		flags = append(flags, "-stdlib=libc++", "-mmacosx-version-min=10.7")
	}

	// Embed the version string into the compiled module.
	flags = append(flags, family.DefineFlag(fmt.Sprintf("VERSION_INFO=%q", p.cfg.Version)))

	if family == FamilyUnix {
		std, err := prober.SelectStandardFlag(ctx, p.cfg.StandardFlags)
		if err != nil {
			p.recordAttempt(Attempt{Stage: StageSourceCompile, Err: err})
			return nil, LinkStrategy{}, err
		}
		flags = append(flags, std)

		if prober.HasFlag(ctx, "-fvisibility=hidden") {
			flags = append(flags, "-fvisibility=hidden")
		}
	}

	strategy, linkAttempts, err := prober.ProbeLink(ctx, p.cfg)
	for _, attempt := range linkAttempts {
		p.recordAttempt(attempt)
	}
	if err != nil {
		return nil, LinkStrategy{}, err
	}

	for _, define := range strategy.Defines {
		flags = append(flags, family.DefineFlag(define))
	}
	p.reporter.Infof("%s: Selected %s linking", p.cfg.Module, strategy.Kind)

	return flags, strategy, nil
}

// compileAndLink builds the real sources and installs the shared module
// into the build output location.
func (p *Pipeline) compileAndLink(ctx context.Context, compileFlags []string, strategy LinkStrategy) (string, error) {
	scratch, err := os.MkdirTemp("", "pyext-build-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(scratch)

	var diagnostics []string
	var objects []string
	for _, source := range p.cfg.Sources {
		object := objectName(scratch, source, p.toolchain.Family())
		diag, err := p.toolchain.Compile(ctx, source, object, compileFlags)
		if diag != "" {
			diagnostics = append(diagnostics, diag)
		}
		if err != nil {
			return "", p.sourceFailure(diagnostics, err)
		}
		objects = append(objects, object)
	}

	if err := os.MkdirAll(p.cfg.OutputDir, 0o755); err != nil {
		return "", p.sourceFailure(diagnostics, err)
	}

	dest := p.installPath()
	diag, err := p.toolchain.LinkShared(ctx, objects, dest, strategy)
	if diag != "" {
		diagnostics = append(diagnostics, diag)
	}
	if err != nil {
		return "", p.sourceFailure(diagnostics, err)
	}

	p.recordAttempt(Attempt{Stage: StageSourceCompile, Success: true, Diagnostics: strings.Join(diagnostics, "\n")})
	return dest, nil
}

// sourceFailure records a failed source build with its diagnostics.
func (p *Pipeline) sourceFailure(diagnostics []string, cause error) error {
	combined := strings.Join(diagnostics, "\n")
	err := zerr.Wrap(ErrSourceCompileFailure, cause.Error())
	p.recordAttempt(Attempt{Stage: StageSourceCompile, Err: err, Diagnostics: combined})
	p.reporter.Noticef("%v", buildError(StageSourceCompile, combined, cause))
	return err
}

// installPath is the build output location under the name the runtime
// loader expects.
func (p *Pipeline) installPath() string {
	return filepath.Join(p.cfg.OutputDir, p.cfg.Module+p.fp.Ext())
}

func (p *Pipeline) recordAttempt(a Attempt) {
	p.attempts = append(p.attempts, a)
}

func (p *Pipeline) report(path string, prebuilt bool) *Report {
	return &Report{
		Installed:     p.state == StateInstalled,
		InstalledPath: path,
		UsedPrebuilt:  prebuilt,
		Attempts:      p.attempts,
	}
}
