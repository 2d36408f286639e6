// Command agraph drives the autodiff engine on a small MLP: it runs a
// checkpointed training step and verifies that checkpointing is transparent.
package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"
)

func main() {
	code := run(App(), os.Args)
	klog.Flush()
	os.Exit(code)
}

// run executes app and turns its error into a process exit code. Errors are
// reported as a single log line; exit coders keep their own code.
func run(app *cli.App, args []string) int {
	err := app.Run(args)
	if err == nil {
		return 0
	}
	klog.Errorf("agraph: %v", err)
	var coder cli.ExitCoder
	if errors.As(err, &coder) && coder.ExitCode() != 0 {
		return coder.ExitCode()
	}
	return 1
}
