// Command raid-import reviews pasted raid logs and imports them into raidstats.
package main

import (
	"os"

	"github.com/okian/raidstats/internal/importcli"
)

var version = "dev"

func main() {
	if err := importcli.Execute(version); err != nil {
		os.Exit(1)
	}
}
