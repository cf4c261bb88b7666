// Command nucleusctl is the demo/boot harness for the kernel core: it boots
// an idle and init process over the in-memory filesystem, runs a few VFS
// and fork/waitpid scenarios as the init thread's body, and prints the
// resulting kernel stats. It is explicitly not an interactive shell.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "nucleusctl",
		Short: "Boot and drive the nucleus kernel core simulator",
	}
	bootCmd := newBootCmd()
	root.AddCommand(bootCmd)
	return root
}
