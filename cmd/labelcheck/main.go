// Command labelcheck verifies that layered request labels reach hosted
// model APIs.
package main

import (
	"os"

	"github.com/roach88/labelcheck/internal/cli"
)

func main() {
	opts := &cli.RootOptions{}
	err := cli.NewRootCommandWithOptions(opts).Execute()
	if err != nil && !cli.IsReported(err) {
		w := os.Stderr
		if opts.Format == "json" {
			w = os.Stdout
		}
		cli.WriteError(w, opts.Format, err)
	}
	os.Exit(cli.GetExitCode(err))
}
