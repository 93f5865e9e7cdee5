package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func mustLoadConfig(cmd *cobra.Command) *Config {
	cfgFile, _ := cmd.Flags().GetString("config")
	config, err := loadConfig(cfgFile)
	if err != nil {
		fmt.Println("Error loading config:", err)
		os.Exit(1)
	}
	return config
}

func runServer(config *Config) {
	printLogo(version)
	printSystemInfo()

	logger := createLogger(config.Server.LogLevel)
	db, w, err := openWorld(config)
	if err != nil {
		fmt.Printf("Error opening database:\n  %v\n", err)
		os.Exit(1)
	}
	printDatabaseInfo(db, len(w.Names()))

	server := NewServer(config, db, w, logger)
	if err = server.Prepare(); err != nil {
		logger.Error("Failed to prepare HTTP server", "error", err)
		_ = db.Close()
		os.Exit(1)
	}

	go func() {
		if startErr := server.Start(); startErr != nil {
			logger.Error("Failed to start HTTP server", "error", startErr)
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutting down...")

	if err = server.Stop(); err != nil {
		logger.Error("Failed to stop HTTP server", "error", err)
	}
	if w.Dirty() {
		if _, err = w.Save(); err != nil {
			logger.Error("Failed to save world catalog", "error", err)
		}
	}
	if err = db.Close(); err != nil {
		logger.Error("Failed to close database", "error", err)
	}

	logger.Info("Shutdown complete")
}

// runOffline opens the world, runs fn and closes the database.
func runOffline(config *Config, fn func(*Config) error) {
	_ = createLogger(config.Server.LogLevel)
	if err := fn(config); err != nil {
		_, _ = color.New(color.FgRed).Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "worldd",
		Short: "worlddb - geographic feature store",
		Run: func(cmd *cobra.Command, args []string) {
			runServer(mustLoadConfig(cmd))
		},
	}

	importCmd := &cobra.Command{
		Use:   "import <archive>",
		Short: "Import a legacy world archive",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runOffline(mustLoadConfig(cmd), func(cfg *Config) error {
				db, w, err := openWorld(cfg)
				if err != nil {
					return err
				}
				defer func() { _ = db.Close() }()
				count, err := ImportArchive(w, args[0])
				if err != nil {
					return err
				}
				fmt.Printf("imported %s features\n", lightGreen.Sprint(count))
				PrintCollections(w)
				return nil
			})
		},
	}

	addCmd := &cobra.Command{
		Use:   "add <geojson> <name> <type>",
		Short: "Add a GeoJSON FeatureCollection as a collection",
		Args:  cobra.ExactArgs(3),
		Run: func(cmd *cobra.Command, args []string) {
			runOffline(mustLoadConfig(cmd), func(cfg *Config) error {
				db, w, err := openWorld(cfg)
				if err != nil {
					return err
				}
				defer func() { _ = db.Close() }()
				count, err := AddCollection(w, args[0], args[1], args[2])
				if err != nil {
					return err
				}
				fmt.Printf("added %s features to %s\n", lightGreen.Sprint(count), pastelColor.Sprint(args[1]))
				return nil
			})
		},
	}

	readCmd := &cobra.Command{
		Use:   "read",
		Short: "List the collections stored in the database",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			runOffline(mustLoadConfig(cmd), func(cfg *Config) error {
				db, w, err := openWorld(cfg)
				if err != nil {
					return err
				}
				defer func() { _ = db.Close() }()
				printDatabaseInfo(db, len(w.Names()))
				PrintCollections(w)
				return nil
			})
		},
	}

	initDefaults()
	setupFlags(rootCmd)
	rootCmd.AddCommand(importCmd, addCmd, readCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println("command execution failed:", err)
		os.Exit(1)
	}
}
