package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/curator_link/cmd/internal/logcfg"
	"github.com/danmuck/curator_link/src/api/transport"
	"github.com/danmuck/curator_link/src/daemon"
	logs "github.com/danmuck/smplog"
	"github.com/spf13/cobra"
)

var (
	listenAddr  string
	fixturePath string
)

var rootCmd = &cobra.Command{
	Use:           "fakecurator",
	Short:         "Serve canned curator responses for local development",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		fixture, err := daemon.LoadFixture(fixturePath)
		if err != nil {
			return err
		}

		ln, err := transport.Listen(listenAddr)
		if err != nil {
			return err
		}

		srv := daemon.NewServer(fixture)
		go func() {
			<-cmd.Context().Done()
			logs.Infof("shutting down")
			ln.Close()
		}()

		err = srv.Serve(ln)
		srv.Shutdown()
		return err
	},
}

func init() {
	rootCmd.Flags().StringVar(&listenAddr, "listen", "./local/curator.sock", "listen address (path, unix://, tcp:// or vsock://)")
	rootCmd.Flags().StringVar(&fixturePath, "fixture", "./local/fakecurator.toml", "TOML fixture with canned responses")
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
