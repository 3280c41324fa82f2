// Package main is the freenect2 command line tool.
package main

import (
	"os"

	"go.viam.com/freenect2/cli"
	// Register the drivers selectable with --driver.
	_ "go.viam.com/freenect2/driver/fake"
	_ "go.viam.com/freenect2/driver/libfreenect2"
)

func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		cli.Errorf(app.ErrWriter, "%v", err)
		os.Exit(1)
	}
}
