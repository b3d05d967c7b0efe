// Command cancomm lists CAN interfaces and sends, dumps and echoes frames
// through the cancomm library.
package main

import (
	"fmt"
	"os"

	"github.com/notnil/cancomm"
)

func main() {
	if err := newRootCmd(cancomm.DefaultBackend()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
