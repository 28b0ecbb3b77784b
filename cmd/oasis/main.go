// Command oasis is the facility intelligence engine for healthcare planners.
package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/oasis-cli/internal/adapters/driven/ai"
	"github.com/custodia-labs/oasis-cli/internal/adapters/driving/cli"
	"github.com/custodia-labs/oasis-cli/internal/logger"
)

func main() {
	// .env is optional; real environment variables win over its values.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Error("reading .env: %v", err)
	}

	cli.SetWiring(&cli.Wiring{
		Settings:  openSettings,
		Services:  buildServices,
		Validator: ai.NewConfigValidator(),
	})

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
