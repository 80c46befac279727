package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionStrings(t *testing.T) {
	orig, origCommit := Version, GitCommit
	t.Cleanup(func() { Version, GitCommit = orig, origCommit })

	Version, GitCommit = "v1.2.0", "abc1234"
	assert.Equal(t, "v1.2.0 (abc1234)", String())
	assert.Contains(t, Full(), runtime.Version())
	assert.Equal(t, "v1.2.0", GetInfo().Version)
}
