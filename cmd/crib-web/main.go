package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	cribnet "github.com/peterkuimelis/crib/internal/net"
	"github.com/peterkuimelis/crib/internal/web"
)

var rootCmd = &cobra.Command{
	Use:   "crib-web",
	Short: "Serve a scripted cribbage game to WebSocket clients",
	RunE:  runWeb,
}

var (
	flagPort   int
	flagScript string
)

func init() {
	flags := rootCmd.Flags()
	flags.IntVar(&flagPort, "port", 8080, "HTTP port to listen on")
	flags.StringVar(&flagScript, "script", "", "YAML script to serve")
	_ = rootCmd.MarkFlagRequired("script")
}

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("execute crib-web command")
	}
}

func runWeb(cmd *cobra.Command, args []string) error {
	script, err := cribnet.LoadScript(flagScript)
	if err != nil {
		return err
	}

	srv := web.NewServer(script, log.Logger)
	addr := fmt.Sprintf(":%d", flagPort)
	log.Info().Str("script", script.Name).Msgf("crib web host listening on ws://localhost:%d/ws", flagPort)
	return srv.ListenAndServe(addr)
}
