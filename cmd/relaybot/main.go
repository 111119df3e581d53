package main

import (
	"log"

	"github.com/m3rciful/relaybot/core/buildinfo"
	"github.com/m3rciful/relaybot/core/cmd"
	coreconfig "github.com/m3rciful/relaybot/core/config"
	"github.com/m3rciful/relaybot/internal/app"
)

func main() {
	log.Printf("relaybot %s (%s) %s", buildinfo.Version, buildinfo.Commit, buildinfo.Date)
	err := cmd.Run(cmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (cmd.ConfigCarrier, error) {
			return coreconfig.Load(path)
		},
		Bootstrap: app.New,
	})
	if err != nil {
		log.Fatal(err)
	}
}
