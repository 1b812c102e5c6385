package main

import (
	"context"
	"log"
	"os"

	"github.com/Perth-Artifactory/tidyproxy/internal/app"
	"github.com/Perth-Artifactory/tidyproxy/internal/buildinfo"
	"github.com/Perth-Artifactory/tidyproxy/internal/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("%v", err)
	}

	application := app.NewApp(cfg)

	if err := application.Run(context.Background()); err != nil {
		log.Fatalf("%v", err)
	}
}
