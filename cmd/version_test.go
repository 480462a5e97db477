package cmd

import (
	"bytes"
	"fmt"
	"runtime/debug"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harshilgor/testtaker-sub001/internal/store"
)

func TestDescribeBuild(t *testing.T) {
	stamped := &debug.BuildInfo{
		GoVersion: "go1.25.6",
		Main:      debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.modified", Value: "true"},
		},
	}
	tests := []struct {
		name     string
		ldflags  string
		info     *debug.BuildInfo
		version  string
		revision string
	}{
		{"no build info", "(devel)", nil, "(devel)", "unknown"},
		{"ldflags win", "v1.4.0", stamped, "v1.4.0", "0123456789ab-dirty"},
		{"vcs fallback", "(devel)", stamped, "devel+0123456789ab-dirty", "0123456789ab-dirty"},
		{"module version", "(devel)", &debug.BuildInfo{Main: debug.Module{Version: "v0.3.1"}}, "v0.3.1", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := describeBuild(tt.ldflags, tt.info)
			assert.Equal(t, tt.version, b.version)
			assert.Equal(t, tt.revision, b.revision)
		})
	}
}

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	t.Cleanup(func() {
		versionCmd.SetOut(nil)
		versionCmd.Flags().Set("short", "false")
	})

	require.NoError(t, versionCmd.RunE(versionCmd, nil))
	assert.Contains(t, out.String(), fmt.Sprintf("schema:  v%d", store.LatestSchemaVersion()))

	out.Reset()
	require.NoError(t, versionCmd.Flags().Set("short", "true"))
	require.NoError(t, versionCmd.RunE(versionCmd, nil))
	assert.Equal(t, buildVersion(), strings.TrimSpace(out.String()))
}
