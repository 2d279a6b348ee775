// Package cmd holds the shopctl administration commands.
package cmd

import (
	"fmt"
	"os"

	"shop-service/config"
	"shop-service/internal/broker"
	"shop-service/internal/redisclient"
	"shop-service/internal/service"
	"shop-service/internal/store"
	"shop-service/internal/util"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "shopctl",
	Short: "Administration tool for the shop service",
	Long: `shopctl applies database migrations, manages user accounts and their
bearer tokens, and follows the shop event stream.

Configuration is read from the environment (and a .env file) exactly as
the server reads it.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		return util.InitLogger(cfg.Server.Env)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		util.SyncLogger()
	},
}

var cfg *config.Config

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openStore connects to Postgres. The in-memory driver is not shared
// between processes, so administration always targets the database.
func openStore() (*store.Store, error) {
	if cfg.Database.Driver != "postgres" {
		return nil, fmt.Errorf("shopctl requires STORE_DRIVER=postgres, got %q", cfg.Database.Driver)
	}
	return store.NewStore(cfg.Database.URL)
}

// userDeps wires a UserService with its collaborators and returns a cleanup
// function releasing them.
func userDeps() (*service.UserService, func(), error) {
	db, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicShop)

	users := service.NewUserService(db, redisClient, cfg.Business.SessionTTL, broker.NewEventPublisher(producer))
	cleanup := func() {
		producer.Close()
		redisClient.Close()
		db.Close()
	}
	return users, cleanup, nil
}
