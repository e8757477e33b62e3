// Command colony coordinates cooperating agents through a shared task queue
// and per-agent mailboxes.
package main

import (
	"os"

	"github.com/mcfearsome/cc-colony-sub001/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
