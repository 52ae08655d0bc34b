package main

import "github.com/jmcleod/sealbox/cmd/sealbox/cmd"

func main() {
	cmd.Execute()
}
