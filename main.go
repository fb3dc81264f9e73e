// Command pollc compiles college football poll ballots.
package main

import (
	"github.com/EvRoHa/CFB-Poll-Compiler/cmd"
)

func main() {
	cmd.Execute()
}
