package main

import (
	"fmt"
	"os"

	"github.com/carryonstow/wikimedia-discovery-analytics/internal/bootstrap"
)

func main() {
	if err := bootstrap.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "query-clicks: %v\n", err)
		os.Exit(1)
	}
}
