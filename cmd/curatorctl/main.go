package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/curator_link/cmd/internal/logcfg"
	"github.com/danmuck/curator_link/src/api/transport"
	"github.com/danmuck/curator_link/src/fsreader"
	"github.com/danmuck/curator_link/src/service"
	logs "github.com/danmuck/smplog"
	"github.com/spf13/cobra"
)

var (
	configPath  string
	addressFlag string
	maxDiffFlag uint32

	cfg RuntimeConfig
)

var rootCmd = &cobra.Command{
	Use:   "curatorctl",
	Short: "Inspect a running fs-curator daemon",
	Long: `curatorctl connects to the fs-curator daemon, reads the layout it
publishes and runs similarity queries against its collection.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		explicit := cmd.Flags().Changed("config")
		loaded, err := loadRuntimeConfig(configPath, explicit)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("address") {
			loaded.Address = addressFlag
		}
		if cmd.Flags().Changed("max-diff") {
			loaded.MaxDiff = maxDiffFlag
		}
		if err := loaded.validate(); err != nil {
			return err
		}
		cfg = loaded
		logs.Configure(logcfg.Load(cfg.LogConfig))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "runtime config file")
	rootCmd.PersistentFlags().StringVar(&addressFlag, "address", "", "daemon address (default "+transport.DefaultAddress+")")
	rootCmd.PersistentFlags().Uint32Var(&maxDiffFlag, "max-diff", service.DefaultMaxDiff, "similarity cut-off out of 64")

	rootCmd.AddCommand(statusCmd, similarCmd, thumbsCmd, pathCmd, haltedCmd)
}

// withService connects for the duration of fn.
func withService(cmd *cobra.Command, fn func(ctx context.Context, svc *service.Service) error) error {
	ctx := cmd.Context()
	svc := service.New(transport.NetDialer{Timeout: cfg.DialTimeout()}, fsreader.Local{})

	svc.Subscribe(func(connected bool) {
		if !connected {
			logs.Debugf("curator connection closed")
		}
	})

	if err := svc.Connect(ctx, cfg.Address); err != nil {
		return err
	}
	defer svc.Disconnect()
	return fn(ctx, svc)
}

func main() {
	logs.Configure(logcfg.Load())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
