package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ludo-technologies/astsim/internal/version"
	"github.com/ludo-technologies/astsim/mcp"
)

const serverName = "astsim"

func main() {
	configPath := flag.String("config", "", "Configuration file (default: discover .astsim.toml)")
	flag.Parse()

	// MCP uses stdout for JSON-RPC
	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	server := mcpserver.NewMCPServer(
		serverName,
		version.Short(),
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithLogging(),
	)

	deps := mcp.NewDependencies(nil, *configPath).WithLogger(logger)
	mcp.RegisterTools(server, mcp.NewHandlerSet(deps))

	log.Printf("Starting %s MCP server %s\n", serverName, version.Short())
	log.Println("Registered tools:")
	log.Println("  - compare_asts: Structural similarity of two AST documents")
	log.Println("  - analyze_directory: Pairwise similarity of a directory of submissions")
	log.Println("")
	log.Println("Server ready - waiting for MCP client connection...")

	if err := mcpserver.ServeStdio(server); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
