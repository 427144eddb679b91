package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/peterkuimelis/crib/internal/config"
	"github.com/peterkuimelis/crib/internal/log"
	cribnet "github.com/peterkuimelis/crib/internal/net"
	"github.com/peterkuimelis/crib/internal/transcript"
)

var rootCmd = &cobra.Command{
	Use:           "crib",
	Short:         "Play cribbage against a game server from the terminal",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Connect to a game server and play",
	Args:  cobra.NoArgs,
	RunE:  runJoin,
}

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Serve a scripted game to one player over TCP",
	Args:  cobra.NoArgs,
	RunE:  runHost,
}

var (
	flagConfig string
	flagPort   string
	flagScript string
	flagReplay string
)

func init() {
	joinCmd.Flags().StringVar(&flagConfig, "config", "", "optional YAML file with client tunables")

	hostCmd.Flags().StringVar(&flagPort, "port", "8080", "TCP port to listen on")
	hostCmd.Flags().StringVar(&flagScript, "script", "", "YAML script to serve")
	hostCmd.Flags().StringVar(&flagReplay, "replay", "", "transcript directory to replay")
	hostCmd.MarkFlagsMutuallyExclusive("script", "replay")
	hostCmd.MarkFlagsOneRequired("script", "replay")

	rootCmd.AddCommand(joinCmd, hostCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runJoin(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	level, err := cfg.Level()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Str("session", uuid.NewString()).Logger()
	events := log.NewZeroLogger(zl)

	term := cribnet.NewTerminal(os.Stdin, os.Stdout)
	name, err := term.Prompt(ctx, "Enter your desired username")
	if err != nil {
		return err
	}
	addr, err := term.Prompt(ctx, "Enter the IP address of the server")
	if err != nil {
		return err
	}
	term.Printf("Trying to connect to ip %s\n", addr)

	clientCfg := cribnet.ClientConfig{
		Username:     name,
		PollInterval: cfg.PollInterval,
		Greeting:     cfg.Greeting,
		Logger:       events,
	}
	if cfg.Transcript != "" {
		store, err := transcript.Open(cfg.Transcript, zl)
		if err != nil {
			return err
		}
		defer store.Close()
		clientCfg.Recorder = store
	}

	dialer := &cribnet.Dialer{
		Attempts: cfg.Connect.Attempts,
		Delay:    cfg.Connect.Delay,
		Progress: term.Writer(),
		Logger:   events,
	}
	err = cribnet.Connect(ctx, addr, dialer, term, clientCfg)
	if err != nil && !errors.Is(err, context.Canceled) {
		term.Println("Disconnected or failed to connect to server")
		zl.Error().Err(err).Msg("session ended")
		return err
	}
	return nil
}

func runHost(cmd *cobra.Command, args []string) error {
	var (
		script *cribnet.Script
		err    error
	)
	if flagReplay != "" {
		script, err = transcript.LoadScript(flagReplay)
	} else {
		script, err = cribnet.LoadScript(flagScript)
	}
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &cribnet.Server{
		Script: script,
		Port:   flagPort,
		Logger: log.NewTextLogger(os.Stdout),
	}
	return srv.Run(ctx)
}
