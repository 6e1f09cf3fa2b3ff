package main

import "github.com/deploymenttheory/go-bitlocker/cmd"

func main() {
	cmd.Execute()
}
