package main

import (
	"os"

	"github.com/abdul-hamid-achik/claudette/internal/cli"
	"github.com/abdul-hamid-achik/claudette/internal/config"
)

var Version = "dev"

func main() {
	os.Exit(cli.Execute(config.ProviderAnthropic, "claudette", "Claude Chat", Version))
}
