// Command framevault archives artwork masters into clips and stills and
// prepares social media and R&D assets.
package main

import (
	"context"
	"os"
	"syscall"

	"github.com/charmbracelet/fang"

	"github.com/backmassage/framevault/internal/cli"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "0.1.0-dev"

func main() {
	// SIGINT/SIGTERM cancel the command context: archive runs pause and
	// can be resumed, batches stop dispatching new items.
	if err := fang.Execute(
		context.Background(),
		cli.NewRootCmd(version),
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
	); err != nil {
		os.Exit(1)
	}
}
