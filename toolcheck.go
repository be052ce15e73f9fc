package pyext

import (
	"fmt"
	"os/exec"
	"strings"

	"go.trai.ch/zerr"
)

// ToolRequirement describes a build tool dependency.
//
// A requirement is satisfied when the primary tool or any of its
// alternatives is found in PATH. Optional tools never fail the check.
//
// Tool alternatives handle platform differences:
//   - Windows: cl (MSVC) instead of c++
//   - macOS: clang++ by default
//   - Linux: c++/g++ by default
type ToolRequirement struct {
	// Name is the primary tool binary name (e.g., "c++", "python3").
	Name string

	// Alternatives are alternative tool names that can satisfy this
	// requirement. Example: []string{"g++", "clang++", "cl"}
	Alternatives []string

	// Optional indicates this tool won't cause an error if missing.
	Optional bool

	// Purpose is a human-readable description of why this tool is needed.
	Purpose string
}

// BuildToolRequirements returns the tools the pipeline needs before it can
// attempt a source build.
func BuildToolRequirements(cfg *Config) []ToolRequirement {
	return []ToolRequirement{
		{
			Name:         "c++",
			Alternatives: []string{"g++", "clang++", "cl"},
			Purpose:      "C++ compiler for native extensions",
		},
		{
			Name:         cfg.Python,
			Alternatives: []string{"python3", "python"},
			Optional:     cfg.PythonVersion != "",
			Purpose:      "Python interpreter for runtime version detection",
		},
	}
}

// CheckToolAvailable checks if a tool is available in the system PATH.
func CheckToolAvailable(tool string) error {
	if _, err := exec.LookPath(tool); err != nil {
		return fmt.Errorf("%s not found in PATH", tool)
	}
	return nil
}

// CheckRequiredTools verifies all required tools are available.
//
// The primary tool name is checked first, then each alternative in order.
// All missing required tools are reported in a single error.
func CheckRequiredTools(requirements []ToolRequirement) error {
	var missing []string

	for _, req := range requirements {
		found := CheckToolAvailable(req.Name) == nil

		if !found {
			for _, alt := range req.Alternatives {
				if CheckToolAvailable(alt) == nil {
					found = true
					break
				}
			}
		}

		if !found && !req.Optional {
			if req.Purpose != "" {
				missing = append(missing, fmt.Sprintf("%s (%s)", req.Name, req.Purpose))
			} else {
				missing = append(missing, req.Name)
			}
		}
	}

	if len(missing) == 0 {
		return nil
	}

	return zerr.With(ErrMissingTools, "tools", strings.Join(missing, ", "))
}
