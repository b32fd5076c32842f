package main

import (
	"log"

	corecmd "github.com/m3rciful/financebot/core/cmd"
	"github.com/m3rciful/financebot/internal/financebot"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return financebot.LoadConfig(path)
		},
		Bootstrap: financebot.Bootstrap,
	})
	if err != nil {
		log.Fatal(err)
	}
}
