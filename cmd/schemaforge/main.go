// Command schemaforge runs the schema generation pipeline: serve starts
// the websocket front door, generate runs one request from the CLI, and
// healthcheck probes a running server.
package main

import (
	"log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("schemaforge: %v", err)
	}
}
