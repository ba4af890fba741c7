package main

import (
	"os"

	"github.com/CMSgov/xc-harvester/harvestworker/cli"
	"github.com/CMSgov/xc-harvester/log"
)

func main() {
	app := cli.GetApp()
	if err := app.Run(os.Args); err != nil {
		log.Worker.Fatal(err)
	}
}
