package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	info := Get()

	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
	assert.NotEmpty(t, info.CommitHash)
}

func TestShort(t *testing.T) {
	assert.Equal(t, "1a2b3c4", Info{CommitHash: "1a2b3c4d5e6f"}.Short())
	assert.Equal(t, "dev", Info{CommitHash: "dev"}.Short())
}

func TestString(t *testing.T) {
	s := Info{Version: "v0.3.0", CommitHash: "1a2b3c4d5e6f", BuildTime: "2025-02-01", GoVersion: "go1.24.6", Platform: "linux/amd64"}.String()
	assert.Equal(t, "aisguard v0.3.0 (commit 1a2b3c4, built 2025-02-01, go1.24.6 linux/amd64)", s)
}
