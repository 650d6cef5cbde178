package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jandubois/multiping/cmd"
)

func main() {
	os.Exit(run())
}

func run() int {
	err := cmd.Execute()
	if err == nil {
		return 0
	}
	var statusErr *cmd.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.ExitCode()
	}
	fmt.Fprintf(os.Stderr, "multiping: %v\n", err)
	return 3
}
