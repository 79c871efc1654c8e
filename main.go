package main

import (
	"os"

	"github.com/mensylisir/xmsudo/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
