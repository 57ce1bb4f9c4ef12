package main

import (
	"os"

	"github.com/facetlabs/facet/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
