// Package main is the tfbuffer CLI command itself.
package main

import (
	"log"
	"os"

	"go.viam.com/tfbuffer/cli"
)

func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
