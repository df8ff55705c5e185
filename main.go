package main

import "github.com/mrogier/actaflow/cmd"

func main() {
	cmd.Execute()
}
