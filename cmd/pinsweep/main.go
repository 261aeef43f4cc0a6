package main

import "github.com/JakeFAU/pinsweep/cmd"

func main() {
	cmd.Execute()
}
