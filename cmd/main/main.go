package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"github.com/BartekS5/dailyetl/internal/cli"
	"github.com/BartekS5/dailyetl/pkg/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logger.Debugf("No .env file found, using system environment variables")
	}
	defer logger.Sync()

	rootCmd := cli.NewRootCmd()
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger.Sync()
		os.Exit(1)
	}
}
