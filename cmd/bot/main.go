package main

import (
	"log"
	"os"

	"quizbot/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		log.Printf("quizbot: %v", err)
		os.Exit(1)
	}
}
