package version

import (
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func setVersion(t *testing.T, v, commit string) {
	t.Helper()
	oldV, oldC := Version, Commit
	Version, Commit = v, commit
	t.Cleanup(func() { Version, Commit = oldV, oldC })
}

func TestInfo(t *testing.T) {
	setVersion(t, "1.2.3", "abc1234567890")

	info := Info()
	assert.Regexp(t, `^agentstudio 1\.2\.3 \(commit: abc1234, built: `, info)
	assert.NotContains(t, info, "abc1234567890")
	assert.Contains(t, info, runtime.GOOS+"/"+runtime.GOARCH)
}

func TestUserAgent(t *testing.T) {
	setVersion(t, "0.4.0", Commit)
	assert.Equal(t, "agentstudio/0.4.0 ("+runtime.GOOS+"/"+runtime.GOARCH+")", UserAgent())
}

func TestFromBuildInfo(t *testing.T) {
	bi := &debug.BuildInfo{Settings: []debug.BuildSetting{
		{Key: "vcs", Value: "git"},
		{Key: "vcs.revision", Value: "0123456789abcdef"},
		{Key: "vcs.time", Value: "2026-03-01T10:00:00Z"},
	}}
	commit, date := fromBuildInfo(bi, "unknown", "unknown")
	assert.Equal(t, "0123456789abcdef", commit)
	assert.Equal(t, "2026-03-01T10:00:00Z", date)

	commit, date = fromBuildInfo(&debug.BuildInfo{}, "unknown", "unknown")
	assert.Equal(t, "unknown", commit)
	assert.Equal(t, "unknown", date)
}

func TestShort(t *testing.T) {
	for in, want := range map[string]string{
		"abcdefghij": "abcdefg",
		"abcdefg":    "abcdefg",
		"abc":        "abc",
		"":           "",
	} {
		assert.Equal(t, want, short(in), in)
	}
}
