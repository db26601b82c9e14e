/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"

	"github.com/devsketch/apiserver/config"
	"github.com/devsketch/apiserver/internal/db"
	"github.com/devsketch/apiserver/internal/logger"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// openStore loads configuration and opens the logger and database used by
// the operator commands.
func openStore(ctx context.Context) (config.Config, *sqlx.DB, *zap.Logger, error) {
	cfg := config.LoadConfig()
	log, err := logger.Init(cfg.Log)
	if err != nil {
		return cfg, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	conn, err := db.Open(ctx, cfg)
	if err != nil {
		return cfg, nil, nil, fmt.Errorf("open database: %w", err)
	}
	return cfg, conn, log, nil
}
