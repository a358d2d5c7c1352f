package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/jcdickinson/rbxdocs/internal/config"
	"github.com/jcdickinson/rbxdocs/internal/daemon"
	"github.com/jcdickinson/rbxdocs/internal/rpc"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <query...>",
	Short: "Fuzzy search Roblox API names",
	Example: `  rbxdocs search anchored
  rbxdocs search part size
  rbxdocs search --deprecated --threshold 60 resize`,
	Args: cobra.MinimumNArgs(1),
	Run:  runSearch,
}

var (
	searchLimit      int
	searchThreshold  int
	searchDeprecated bool
	searchJSON       bool
)

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "max results (default from settings)")
	searchCmd.Flags().IntVar(&searchThreshold, "threshold", 0, "minimum score 0-100 (default from settings)")
	searchCmd.Flags().BoolVar(&searchDeprecated, "deprecated", false, "include deprecated APIs")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
}

// searchRequest joins args into one query, leaving unset flags to the
// daemon's settings.
func searchRequest(cmd *cobra.Command, args []string) rpc.SearchRequest {
	req := rpc.SearchRequest{Query: strings.Join(args, " "), MaxResults: searchLimit}
	if cmd.Flags().Changed("threshold") {
		threshold := searchThreshold
		req.ScoreThreshold = &threshold
	}
	if cmd.Flags().Changed("deprecated") {
		deprecated := searchDeprecated
		req.ShowDeprecated = &deprecated
	}
	return req
}

func runSearch(cmd *cobra.Command, args []string) {
	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	resp, err := client.Search(context.Background(), searchRequest(cmd, args))
	if err != nil {
		log.Fatalf("search failed: %v", err)
	}

	if searchJSON {
		out, _ := json.MarshalIndent(resp.Results, "", "  ")
		fmt.Println(string(out))
		return
	}
	printResults(os.Stdout, resp.Results)
}

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Re-download the API dump and documentation",
	Run:   runReload,
}

func runReload(cmd *cobra.Command, args []string) {
	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	fmt.Println("reloading...")
	resp, err := client.Reload(context.Background())
	if err != nil {
		log.Fatalf("reload failed: %v", err)
	}
	fmt.Printf("loaded %s: %d APIs (%d deprecated)\n", resp.Version, resp.Active+resp.Deprecated, resp.Deprecated)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the loaded client version and recent builds",
	Run:   runStatus,
}

var statusJSON bool

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
}

func runStatus(cmd *cobra.Command, args []string) {
	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	resp, err := client.Status(context.Background())
	if err != nil {
		log.Fatalf("status failed: %v", err)
	}

	if statusJSON {
		out, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Println(string(out))
		return
	}
	printStatus(os.Stdout, resp)
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background daemon",
	Run:   runStop,
}

func runStop(cmd *cobra.Command, args []string) {
	client := daemon.NewClient(config.SocketPath())
	if !client.IsAvailable() {
		fmt.Println("daemon is not running")
		return
	}

	// The daemon exits right after answering, so a reset connection is fine.
	client.Shutdown(context.Background())
	fmt.Println("daemon stopped")
}
