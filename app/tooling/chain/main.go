// This program mines, verifies and inspects proof of work chains.
package main

import "github.com/ardanlabs/powchain/app/tooling/chain/cmd"

func main() {
	cmd.Execute()
}
