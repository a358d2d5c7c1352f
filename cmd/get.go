package cmd

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jcdickinson/rbxdocs/internal/rpc"
	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <name | rbxdoc://name>",
	Short: "Print the documentation of one API as markdown",
	Example: `  rbxdocs get Part.Anchored
  rbxdocs get Enum.Material
  rbxdocs get rbxdoc://Vector3`,
	Args: cobra.ExactArgs(1),
	Run:  runGet,
}

func runGet(cmd *cobra.Command, args []string) {
	name := strings.TrimPrefix(strings.TrimSpace(args[0]), "rbxdoc://")
	if name == "" {
		log.Fatalf("invalid name %q", args[0])
	}

	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	resp, err := client.GetDoc(context.Background(), rpc.GetDocRequest{Name: name})
	if err != nil {
		log.Fatalf("get doc failed: %v", err)
	}

	fmt.Print(resp.Markdown)
}
