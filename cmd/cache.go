package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jcdickinson/rbxdocs/internal/api"
	"github.com/jcdickinson/rbxdocs/internal/config"
	"github.com/jcdickinson/rbxdocs/internal/daemon"
	"github.com/jcdickinson/rbxdocs/internal/db"
	"github.com/jcdickinson/rbxdocs/internal/rpc"
	"github.com/spf13/cobra"
)

var clearCacheCmd = &cobra.Command{
	Use:   "clear-cache",
	Short: "Delete cached API dumps",
	Long: `Delete the compressed API dumps kept per client version. The next reload
downloads the dump again. With --history the build history is deleted too.`,
	Run: runClearCache,
}

var clearHistory bool

func init() {
	clearCacheCmd.Flags().BoolVar(&clearHistory, "history", false, "also delete the build history")
}

func runClearCache(cmd *cobra.Command, args []string) {
	resp, err := clearCache(rpc.ClearCacheRequest{History: clearHistory})
	if err != nil {
		slog.Error("failed to clear cache", "error", err)
		os.Exit(1)
	}

	fmt.Printf("removed %d cached dump(s)\n", resp.Removed)
	if clearHistory {
		fmt.Printf("removed %d build record(s)\n", resp.BuildsRemoved)
	}
}

// clearCache goes through the daemon when one is running so its in-memory
// version cache is dropped too; otherwise it works on the files directly.
func clearCache(req rpc.ClearCacheRequest) (*rpc.ClearCacheResponse, error) {
	client := daemon.NewClient(config.SocketPath())
	if client.IsAvailable() {
		return client.ClearCache(context.Background(), req)
	}

	removed, err := api.NewDumpCache(config.DumpCacheDir()).Clear()
	if err != nil {
		return nil, err
	}
	resp := &rpc.ClearCacheResponse{Removed: removed}
	if !req.History {
		return resp, nil
	}

	database, err := db.New(config.DBPath())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()
	if resp.BuildsRemoved, err = database.ClearBuilds(); err != nil {
		return nil, err
	}
	return resp, nil
}
