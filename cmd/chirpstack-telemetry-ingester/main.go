package main

import "github.com/brocaar/chirpstack-telemetry-ingester/cmd/chirpstack-telemetry-ingester/cmd"

var version string // set by the compiler

func main() {
	cmd.Execute(version)
}
