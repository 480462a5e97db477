package cmd

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/harshilgor/testtaker-sub001/internal/store"
)

// version is set via -ldflags at build time.
var version = "(devel)"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build and schema information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info, _ := debug.ReadBuildInfo()
		b := describeBuild(version, info)
		out := cmd.OutOrStdout()

		if short, _ := cmd.Flags().GetBool("short"); short {
			_, err := fmt.Fprintln(out, b.version)
			return err
		}
		_, err := fmt.Fprintf(out, "testtaker %s\n  go:      %s\n  commit:  %s\n  schema:  v%d\n",
			b.version, b.goVersion, b.revision, store.LatestSchemaVersion())
		return err
	},
}

func init() {
	versionCmd.Flags().Bool("short", false, "print only the version")
}

type buildDescription struct {
	version   string
	goVersion string
	revision  string
}

// describeBuild prefers the -ldflags version, then the module version, and
// finally a pseudo version built from the VCS stamp.
func describeBuild(ldflags string, info *debug.BuildInfo) buildDescription {
	b := buildDescription{version: ldflags, goVersion: "unknown", revision: "unknown"}
	if info == nil {
		return b
	}
	b.goVersion = info.GoVersion

	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			b.revision = s.Value
			if len(b.revision) > 12 {
				b.revision = b.revision[:12]
			}
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if dirty && b.revision != "unknown" {
		b.revision += "-dirty"
	}

	if b.version != "(devel)" && b.version != "" {
		return b
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		b.version = v
	} else if b.revision != "unknown" {
		b.version = "devel+" + b.revision
	}
	return b
}

// buildVersion is the version reported by the server and logs.
func buildVersion() string {
	info, _ := debug.ReadBuildInfo()
	return describeBuild(version, info).version
}
