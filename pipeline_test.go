package pyext

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testFingerprint = Fingerprint{OS: "linux", Machine: "x86_64", Major: 3, Minor: 10}

// testPipeline wires a pipeline with a fake toolchain, a recording consent
// provider and temp directories for output and repository.
func testPipeline(t *testing.T, toolchain *fakeToolchain, consent *recordingConsent) (*Pipeline, *Config) {
	t.Helper()

	cfg := DefaultConfig()
	cfg.OutputDir = filepath.Join(t.TempDir(), "build", "lib")
	cfg.RepositoryDir = filepath.Join(t.TempDir(), "prebuilt")

	pipeline := NewPipeline(cfg, PipelineOptions{
		Toolchain:   toolchain,
		Consent:     consent,
		Reporter:    NopReporter{},
		Fingerprint: testFingerprint,
	})
	return pipeline, cfg
}

func TestRunInstallsFromSource(t *testing.T) {
	consent := &recordingConsent{}
	pipeline, cfg := testPipeline(t, &fakeToolchain{}, consent)

	report, err := pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Installed)
	assert.False(t, report.UsedPrebuilt)
	assert.Equal(t, StateInstalled, pipeline.State())
	assert.FileExists(t, filepath.Join(cfg.OutputDir, "hicstraw.so"))

	// A successful source build never consults the consent gate.
	assert.Zero(t, consent.asked)
}

func TestRunUserDeclinesFallback(t *testing.T) {
	consent := &recordingConsent{
		decision: ConsentDecision{Granted: false, Source: SourceUserAnswer},
	}
	pipeline, cfg := testPipeline(t, &fakeToolchain{failSources: true}, consent)

	report, err := pipeline.Run(context.Background())
	require.ErrorIs(t, err, ErrUserDeclined)

	assert.False(t, report.Installed)
	assert.Equal(t, StateFailed, pipeline.State())
	assert.Equal(t, 1, consent.asked)

	// Nothing may be written to the build output location.
	entries, readErr := os.ReadDir(cfg.OutputDir)
	if readErr == nil {
		assert.Empty(t, entries)
	}
}

func TestRunDefaultConsentInstallsPrebuilt(t *testing.T) {
	consent := &recordingConsent{
		decision: ConsentDecision{Granted: true, Source: SourceDefaultNonInteractive},
	}
	pipeline, cfg := testPipeline(t, &fakeToolchain{failSources: true}, consent)

	// Publish a prebuilt binary under the exact canonical name.
	prebuilt := []byte("prebuilt binary bytes")
	require.NoError(t, os.MkdirAll(cfg.RepositoryDir, 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(cfg.RepositoryDir, "hicstraw.linux.x86_64.cp3.10-3.10.so"), prebuilt, 0o755))

	report, err := pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Installed)
	assert.True(t, report.UsedPrebuilt)
	assert.Equal(t, StateInstalled, pipeline.State())

	installed, err := os.ReadFile(filepath.Join(cfg.OutputDir, "hicstraw.so"))
	require.NoError(t, err)
	assert.Equal(t, prebuilt, installed, "prebuilt bytes must be copied verbatim")
}

func TestRunFailsWhenNoPrebuiltAvailable(t *testing.T) {
	consent := &recordingConsent{
		decision: ConsentDecision{Granted: true, Source: SourceUserAnswer},
	}
	pipeline, _ := testPipeline(t, &fakeToolchain{failSources: true}, consent)

	report, err := pipeline.Run(context.Background())
	require.ErrorIs(t, err, ErrNoPrebuiltAvailable)

	assert.False(t, report.Installed)
	assert.Equal(t, StateFailed, pipeline.State())
}

func TestRunProbingFailureFallsBackToPrebuilt(t *testing.T) {
	// No candidate standard flag is accepted; probing fails before the real
	// sources are ever compiled, and the fallback chain still applies.
	toolchain := &fakeToolchain{rejectFlags: []string{"-std=c++14", "-std=c++11"}}
	consent := &recordingConsent{
		decision: ConsentDecision{Granted: true, Source: SourceDefaultNonInteractive},
	}
	pipeline, cfg := testPipeline(t, toolchain, consent)

	require.NoError(t, os.MkdirAll(cfg.RepositoryDir, 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(cfg.RepositoryDir, "hicstraw.linux.x86_64.cp3.10-3.10.so"), []byte("bin"), 0o755))

	report, err := pipeline.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.UsedPrebuilt)
}

func TestRunLinkFailureRecordsBothTrials(t *testing.T) {
	toolchain := &fakeToolchain{failStatic: true, failDynamic: true}
	consent := &recordingConsent{
		decision: ConsentDecision{Granted: false, Source: SourceUserAnswer},
	}
	pipeline, _ := testPipeline(t, toolchain, consent)

	report, err := pipeline.Run(context.Background())
	require.ErrorIs(t, err, ErrUserDeclined)

	var stages []Stage
	for _, attempt := range report.Attempts {
		stages = append(stages, attempt.Stage)
	}
	assert.Contains(t, stages, StageStaticLink)
	assert.Contains(t, stages, StageDynamicLink)
}

func TestBuildFromSourceEmbedsVersionAndStandard(t *testing.T) {
	toolchain := &fakeToolchain{}
	pipeline, _ := testPipeline(t, toolchain, &recordingConsent{})

	_, err := pipeline.BuildFromSource(context.Background())
	require.NoError(t, err)

	// The last Compile call is the real source build.
	require.NotEmpty(t, toolchain.compiledFlags)
	flags := toolchain.compiledFlags[len(toolchain.compiledFlags)-1]
	assert.Contains(t, flags, `-DVERSION_INFO="1.3.2"`)
	assert.Contains(t, flags, "-std=c++14")
	assert.Contains(t, flags, "-fvisibility=hidden")
	assert.Contains(t, flags, "-DCURL_STATICLIB")
	assert.Contains(t, flags, "-DZ_STATICLIB")
}

func TestRunQuietModeStillReportsRecoveredFailures(t *testing.T) {
	// Recovered stage failures are forced diagnostics: quiet mode may drop
	// progress output, but every failure must be reported before the
	// pipeline advances to the next fallback.
	var out bytes.Buffer
	cfg := DefaultConfig()
	cfg.Quiet = true
	cfg.OutputDir = filepath.Join(t.TempDir(), "build", "lib")
	cfg.RepositoryDir = filepath.Join(t.TempDir(), "prebuilt")

	pipeline := NewPipeline(cfg, PipelineOptions{
		Toolchain:   &fakeToolchain{failStatic: true, failDynamic: true},
		Consent:     &StaticConsent{Decision: ConsentDecision{Granted: false, Source: SourceUserAnswer}},
		Reporter:    NewWriterReporter(&out, cfg.Quiet),
		Fingerprint: testFingerprint,
	})

	_, err := pipeline.Run(context.Background())
	require.ErrorIs(t, err, ErrUserDeclined)

	assert.Contains(t, out.String(), "Static linking failed")
	assert.Contains(t, out.String(), "Dynamic linking failed")
	assert.Contains(t, out.String(), "failed to link against required libraries")
	assert.Contains(t, out.String(), "hicstraw: Build from source failed!")
}

func TestRunQuietModeStillReportsCompileFailure(t *testing.T) {
	var out bytes.Buffer
	cfg := DefaultConfig()
	cfg.Quiet = true
	cfg.OutputDir = filepath.Join(t.TempDir(), "build", "lib")
	cfg.RepositoryDir = filepath.Join(t.TempDir(), "prebuilt")

	pipeline := NewPipeline(cfg, PipelineOptions{
		Toolchain:   &fakeToolchain{failSources: true},
		Consent:     &StaticConsent{Decision: ConsentDecision{Granted: false, Source: SourceUserAnswer}},
		Reporter:    NewWriterReporter(&out, cfg.Quiet),
		Fingerprint: testFingerprint,
	})

	_, err := pipeline.Run(context.Background())
	require.ErrorIs(t, err, ErrUserDeclined)

	assert.Contains(t, out.String(), "SourceCompile failed")
	assert.Contains(t, out.String(), "curl/curl.h: No such file or directory")
}

func TestStateString(t *testing.T) {
	states := map[State]string{
		StateInit:              "Init",
		StateProbing:           "Probing",
		StateSourceBuilding:    "SourceBuilding",
		StateConsentPending:    "ConsentPending",
		StatePrebuiltResolving: "PrebuiltResolving",
		StateInstalled:         "Installed",
		StateFailed:            "Failed",
	}
	for state, want := range states {
		assert.Equal(t, want, state.String())
	}
}
