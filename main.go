package main

import "github.com/drgolem/vgmtools/cmd"

func main() {
	cmd.Execute()
}
