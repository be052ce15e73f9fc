package pyext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintFilename(t *testing.T) {
	tests := []struct {
		name string
		fp   Fingerprint
		want string
	}{
		{
			name: "linux x86_64 python 3.10",
			fp:   Fingerprint{OS: "linux", Machine: "x86_64", Major: 3, Minor: 10},
			want: "hicstraw.linux.x86_64.cp3.10-3.10.so",
		},
		{
			name: "darwin arm64 python 3.12",
			fp:   Fingerprint{OS: "darwin", Machine: "arm64", Major: 3, Minor: 12},
			want: "hicstraw.darwin.arm64.cp3.12-3.12.so",
		},
		{
			name: "windows amd64 python 3.11",
			fp:   Fingerprint{OS: "windows", Machine: "amd64", Major: 3, Minor: 11},
			want: "hicstraw.windows.amd64.cp3.11-3.11.pyd",
		},
		{
			name: "mixed case is normalized",
			fp:   Fingerprint{OS: "Linux", Machine: "X86_64", Major: 3, Minor: 9},
			want: "hicstraw.linux.x86_64.cp3.9-3.9.so",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.fp.Filename("hicstraw"))
		})
	}
}

func TestRenderIsPure(t *testing.T) {
	a := Fingerprint{OS: "linux", Machine: "x86_64", Major: 3, Minor: 10}
	b := Fingerprint{OS: "linux", Machine: "x86_64", Major: 3, Minor: 10}

	// Equal fingerprints always render identically.
	assert.Equal(t, a.Render(), b.Render())
	assert.Equal(t, a.Render(), a.Render())
}

func TestRenderDistinctPlatformsNeverCollide(t *testing.T) {
	fps := []Fingerprint{
		{OS: "linux", Machine: "x86_64", Major: 3, Minor: 10},
		{OS: "linux", Machine: "x86_64", Major: 3, Minor: 11},
		{OS: "linux", Machine: "aarch64", Major: 3, Minor: 10},
		{OS: "darwin", Machine: "x86_64", Major: 3, Minor: 10},
		{OS: "darwin", Machine: "arm64", Major: 3, Minor: 12},
		{OS: "windows", Machine: "amd64", Major: 3, Minor: 10},
	}

	seen := make(map[string]Fingerprint)
	for _, fp := range fps {
		rendered := fp.Render()
		if prev, ok := seen[rendered]; ok {
			t.Fatalf("fingerprints %v and %v both render to %q", prev, fp, rendered)
		}
		seen[rendered] = fp
	}
}

func TestHostMachine(t *testing.T) {
	tests := []struct {
		goos, goarch, want string
	}{
		{"linux", "amd64", "x86_64"},
		{"darwin", "amd64", "x86_64"},
		{"windows", "amd64", "amd64"},
		{"linux", "arm64", "aarch64"},
		{"darwin", "arm64", "arm64"},
		{"linux", "386", "i686"},
		{"linux", "riscv64", "riscv64"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, hostMachine(tc.goos, tc.goarch), "%s/%s", tc.goos, tc.goarch)
	}
}

func TestCurrentFingerprint(t *testing.T) {
	fp, err := CurrentFingerprint("3.10")
	require.NoError(t, err)
	assert.Equal(t, 3, fp.Major)
	assert.Equal(t, 10, fp.Minor)
	assert.NotEmpty(t, fp.OS)
	assert.NotEmpty(t, fp.Machine)
}

func TestCurrentFingerprintRejectsBadVersions(t *testing.T) {
	for _, version := range []string{"", "3", "three.ten", "3.x"} {
		_, err := CurrentFingerprint(version)
		assert.Error(t, err, "version %q", version)
	}
}
