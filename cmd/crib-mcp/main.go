package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/peterkuimelis/crib/internal/config"
	cribmcp "github.com/peterkuimelis/crib/internal/mcp"
)

var rootCmd = &cobra.Command{
	Use:           "crib-mcp",
	Short:         "MCP server that lets an agent play a cribbage client session over stdio",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runMCP,
}

var flagConfig string

func init() {
	rootCmd.Flags().StringVar(&flagConfig, "config", "", "optional YAML file with client tunables")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	level, err := cfg.Level()
	if err != nil {
		return err
	}

	// stdout carries the MCP protocol; diagnostics go to stderr.
	cribmcp.SetConfig(cfg)
	cribmcp.SetLogger(zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger())

	s := server.NewMCPServer("crib", "1.0.0")
	cribmcp.RegisterTools(s)
	return server.ServeStdio(s)
}
