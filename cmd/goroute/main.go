package main

import (
	"log"
	"os"

	"github.com/m3rciful/goroute/core/cmd"
	"github.com/m3rciful/goroute/internal/app"
)

func main() {
	err := cmd.Run(cmd.Options{
		Name:              "goroute",
		Args:              os.Args[1:],
		ConfigEnvVar:      "GOROUTE_CONFIG",
		DefaultConfigPath: "config.yaml",
		LoadConfig:        app.Load,
		Bootstrap:         app.Bootstrap,
	})
	if err != nil {
		log.Fatal(err)
	}
}
