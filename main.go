package main

import (
	"context"
	"log/slog"
	"os"
)

func main() {
	app := initApp()

	err := app.cliCmd.Run(context.Background(), os.Args)
	if err != nil {
		slog.Error("Error", "msg", err)
		os.Exit(1)
	}
}
