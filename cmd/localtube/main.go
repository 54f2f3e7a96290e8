package main

import (
	"go-localtube/cmd/localtube/cmd"
)

func main() {
	// Execute the root command (defined in cmd/root.go)
	cmd.Execute()
}
