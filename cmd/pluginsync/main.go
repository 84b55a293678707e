package main

import (
	"fmt"
	"os"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/platinummonkey/pluginsync/pkg/cli"
	"github.com/platinummonkey/pluginsync/pkg/installer"
)

func main() {
	rootCmd := cli.NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if installer.IsRecovered(err) {
			// the plugins directory is back at its previous state
			os.Exit(2)
		}
		os.Exit(1)
	}
}
