package main

import "github.com/Norgate-AV/polysched/cmd"

func main() {
	cmd.Execute()
}
