package main

import (
	log "github.com/sirupsen/logrus"
)

func main() {
	if err := newRootCmd(buildService).Execute(); err != nil {
		log.Fatalf("evaluate: %v", err)
	}
}
