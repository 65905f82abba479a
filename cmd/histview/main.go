// histview renders chat history a window at a time in the terminal, over
// HTTP, or from replayed scenario scripts.
package main

import (
	"fmt"
	"os"

	"github.com/wethinkt/go-histview/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
