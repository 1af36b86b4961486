// Command localci runs GitHub Actions-style workflows against a local
// container or VM backend, without a hosted runner.
package main

import "github.com/localci/localci/cmd/localci/cmd"

func main() {
	cmd.Execute()
}
