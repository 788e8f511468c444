// Command lanscan discovers and enriches hosts on local network ranges.
package main

import "github.com/anstrom/lanscan/cmd/cli"

// Set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildTime)
	cli.Execute()
}
