// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/javajoker/storefront-backend/internal/config"
	"github.com/javajoker/storefront-backend/internal/database"
	"github.com/javajoker/storefront-backend/internal/i18n"
	"github.com/javajoker/storefront-backend/internal/logger"
	"github.com/javajoker/storefront-backend/internal/router"
)

var (
	cfg *config.Config
	log *logrus.Logger

	// Skip migrations on serve when the schema is managed separately.
	skipMigrations bool
)

var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Storefront back-office API",
	Long: `Storefront back-office API: public catalog, admin product management
with image uploads, and sales dashboard.

Run without a subcommand to start the HTTP server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		log = logger.New(cfg.Log, cfg.Environment)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(func(db *gorm.DB) error {
			return database.RunMigrations(db, log)
		})
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the initial admin user and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(func(db *gorm.DB) error {
			if err := database.RunMigrations(db, log); err != nil {
				return err
			}
			return database.SeedInitialData(db, cfg.Admin, log)
		})
	},
}

func init() {
	serveCmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not run migrations before serving")
	rootCmd.Flags().AddFlagSet(serveCmd.Flags())
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func withDatabase(fn func(db *gorm.DB) error) error {
	db, err := database.Initialize(cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close(db, log)
	return fn(db)
}

func runServer() error {
	return withDatabase(func(db *gorm.DB) error {
		if !skipMigrations {
			if err := database.RunMigrations(db, log); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
		}

		// Initialize i18n
		if err := i18n.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize i18n: %w", err)
		}

		// Set Gin mode
		if cfg.IsProduction() {
			gin.SetMode(gin.ReleaseMode)
		}

		server, err := router.Initialize(db, cfg, log)
		if err != nil {
			return fmt.Errorf("failed to initialize router: %w", err)
		}
		defer server.Close()

		srv := &http.Server{
			Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
			Handler:      server.Engine,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		}

		// Start server in a goroutine
		serveErr := make(chan error, 1)
		go func() {
			log.WithField("addr", srv.Addr).Info("Starting server")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
			close(serveErr)
		}()

		// Wait for interrupt signal to gracefully shutdown the server
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case err := <-serveErr:
			if err != nil {
				return fmt.Errorf("failed to start server: %w", err)
			}
			return nil
		case <-quit:
		}
		log.Info("Shutting down server...")

		// Create a deadline for shutdown
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		log.Info("Server exited")
		return nil
	})
}
