package main

import (
	"log"
	"os"

	"live-quiz-service/internal/cli"
)

func main() {
	// question timers are second-granular; millisecond logs make races readable
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
