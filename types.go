package pyext

// Stage identifies one step of the fallback chain.
type Stage int

const (
	// StageSourceCompile is the regular from-source build of the extension.
	StageSourceCompile Stage = iota
	// StageStaticLink is the static-link trial against the required libraries.
	StageStaticLink
	// StageDynamicLink is the dynamic-link trial against the required libraries.
	StageDynamicLink
	// StagePrebuiltInstall is the installation of a prebuilt binary from the
	// artifact repository.
	StagePrebuiltInstall
)

// String returns the stage name used in diagnostics.
func (s Stage) String() string {
	switch s {
	case StageSourceCompile:
		return "SourceCompile"
	case StageStaticLink:
		return "StaticLink"
	case StageDynamicLink:
		return "DynamicLink"
	case StagePrebuiltInstall:
		return "PrebuiltInstall"
	default:
		return "Unknown"
	}
}

// Attempt records the outcome of a single build attempt. Attempts are
// ephemeral, produced per pipeline run, and surface in the final Report so
// callers can see which fallbacks were exercised.
type Attempt struct {
	Stage       Stage  // Which step of the fallback chain
	Success     bool   // True if the attempt completed without errors
	Err         error  // Failure reason, nil on success
	Diagnostics string // Captured compiler/linker output, may be empty
}

// LinkKind selects between the two link strategies.
type LinkKind int

const (
	// LinkStatic links the required libraries statically, with the
	// static-linking preprocessor defines set.
	LinkStatic LinkKind = iota
	// LinkDynamic links the required libraries dynamically.
	LinkDynamic
)

// String returns the strategy name used in diagnostics.
func (k LinkKind) String() string {
	if k == LinkStatic {
		return "static"
	}
	return "dynamic"
}

// LinkStrategy describes how the extension is linked against its external
// libraries. A strategy carries everything the linker invocation needs: the
// library names, the search paths, and (for static linking) the preprocessor
// defines the library headers expect.
type LinkStrategy struct {
	Kind        LinkKind // Static or dynamic
	Libraries   []string // Library names without the -l prefix (curl, z)
	LibraryDirs []string // Linker search paths
	Defines     []string // Preprocessor defines, set for the static strategy
}

// Report summarizes a completed pipeline run.
type Report struct {
	Installed     bool      // True if a binary reached the output location
	InstalledPath string    // Absolute path of the installed extension
	UsedPrebuilt  bool      // True if the binary came from the repository
	Attempts      []Attempt // Every build attempt, in order
}
