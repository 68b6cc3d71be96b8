package main

import (
	"github.com/mkd-neo4j/neo4j-query-compiler/internal/cli"
)

// Set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cli.Execute(version)
}
