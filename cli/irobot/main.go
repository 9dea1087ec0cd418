package main

import (
	"os"

	irobotcmder "github.com/irobothq/irobot/cmd/irobot"
)

func main() {
	cmd := irobotcmder.NewIrobotCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
