package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the loaded and the current Roblox client version",
	Run:   runVersion,
}

func runVersion(cmd *cobra.Command, args []string) {
	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	resp, err := client.Version(context.Background())
	if err != nil {
		log.Fatalf("version lookup failed: %v", err)
	}

	loaded := resp.Loaded
	if loaded == "" {
		loaded = "(none)"
	}
	fmt.Printf("loaded:  %s\n", loaded)
	fmt.Printf("current: %s\n", resp.Current)
	if resp.Stale {
		fmt.Println(warnColor.Sprint("a newer client version is available; run `rbxdocs reload`"))
	}
}
