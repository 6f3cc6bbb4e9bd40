package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	debug      bool

	rootCmd = &cobra.Command{
		Use:   "chattun",
		Short: "IP tunnel over chat platforms",
		Long: "chattun carries IP packets between a tun device and a chat platform.\n" +
			"Packets travel as text messages on Discord or as group titles on Telegram.",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(debug)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().
		StringVar(&configPath, "config", "", "path to a yaml or toml config file")
	rootCmd.PersistentFlags().
		BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(NewRunCommand())
	rootCmd.AddCommand(NewServiceCommand())
	rootCmd.AddCommand(NewCodecCommand())
}

func setupLogging(debug bool) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		log.Infof("received %v signal, shutting down", <-sigchan)
		cancel()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
