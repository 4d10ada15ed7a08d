package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fgeck/devicectl/internal/config"
	"github.com/fgeck/devicectl/internal/device"
	"github.com/fgeck/devicectl/internal/models"
	"github.com/rs/zerolog/log"
)

// loadInventory parses and validates the config file.
func loadInventory() (*models.InventoryConfig, error) {
	parser := config.NewParser()
	cfg, err := parser.LoadFile(configFile)
	if err != nil {
		log.Error().Err(err).Str("file", configFile).Msg("failed to load config")
		return nil, err
	}

	if err := config.Validate(cfg); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return nil, err
	}

	log.Debug().Str("config", configFile).Int("devices", len(cfg.Devices)).Msg("configuration loaded")
	return cfg, nil
}

// loadDevice builds the named device. The machine's own hostname decides
// whether its commands run locally.
func loadDevice(name string) (*device.Device, error) {
	cfg, err := loadInventory()
	if err != nil {
		return nil, err
	}

	devCfg, ok := cfg.Lookup(name)
	if !ok {
		log.Error().Str("device", name).Msg("unknown device")
		return nil, fmt.Errorf("unknown device: %s", name)
	}

	localHostname, err := os.Hostname()
	if err != nil {
		log.Warn().Err(err).Msg("cannot determine local hostname, every device is remote")
	}

	return device.New(log.Logger, devCfg, localHostname), nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Warn().Str("signal", sig.String()).Msg("received signal, shutting down")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}
