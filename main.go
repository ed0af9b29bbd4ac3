package main

import "github.com/Siddhant-K-code/swarmcluster/cmd"

func main() {
	cmd.Execute()
}
