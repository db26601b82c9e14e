/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/devsketch/apiserver/config"
	"github.com/devsketch/apiserver/internal/logger"
	"github.com/devsketch/apiserver/internal/mq"
	"github.com/devsketch/apiserver/types"
	"github.com/spf13/cobra"
)

// eventsCmd represents the events command
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect the security event stream",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print security events as JSON lines until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log, err := logger.Init(cfg.Log)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		backend, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if backend == nil {
			return errors.New("MQ_PROVIDER is none; nothing to tail")
		}
		defer backend.Close()

		enc := json.NewEncoder(cmd.OutOrStdout())
		bus := mq.NewEventBus(backend, cfg.MQ, log)
		err = bus.Tail(ctx, func(event types.SecurityEvent) error {
			return enc.Encode(event)
		})
		if errors.Is(err, ctx.Err()) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
