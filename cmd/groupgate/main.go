package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"groupgate/internal/api"
	"groupgate/internal/config"
	"groupgate/internal/flow"
	"groupgate/internal/ui"
)

func main() {
	cfgPath := filepath.Join(config.Dir(), "client.yaml")

	saved, err := config.LoadClient(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load saved settings: %v\n", err)
		os.Exit(1)
	}

	ctrl := flow.New(func(baseURL string) flow.Gateway {
		return api.New(baseURL)
	}, saved.BackendURL)

	probe := func(ctx context.Context, url string) error {
		return api.New(url).Health(ctx)
	}
	save := func(url string) error {
		return config.SaveClient(cfgPath, &config.ClientConfig{BackendURL: url})
	}

	app := ui.NewApp(ctrl, probe, save)
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
