package cmd

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/Norgate-AV/polysched/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve schedule evaluations over gRPC",
	Long: `Start the gRPC schedule service. Requests are evaluated one program at a
time, at most --concurrency at once. When a programs directory is configured
it is watched and reloaded on change.`,
	Args:         cobra.NoArgs,
	RunE:         runServe,
	SilenceUsage: true,
}

func init() {
	serveCmd.Flags().StringP("listen", "l", "", "Listen address")
	serveCmd.Flags().IntP("concurrency", "j", 0, "Maximum concurrent evaluations")
	serveCmd.Flags().Duration("run-timeout", 0, "Upper bound for one wrapper run")
	serveCmd.Flags().String("cc", "", "C compiler")
	serveCmd.Flags().Bool("openmp", true, "Compile with OpenMP")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.pipeline()
	if err != nil {
		return err
	}

	lis, err := net.Listen("tcp", a.cfg.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.cfg.Listen, err)
	}

	d := server.NewDispatcher(a.registry, p, a.cfg.Concurrency, a.logger)
	srv := server.New(d, a.logger)

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Serve(lis)
	})

	g.Go(func() error {
		<-ctx.Done()
		a.logger.Info("shutting down")
		srv.GracefulStop()
		return nil
	})

	if a.cfg.ProgramsDir != "" {
		g.Go(func() error {
			a.logger.Info("watching programs", zap.String("dir", a.cfg.ProgramsDir))
			return a.registry.Watch(ctx, a.cfg.ProgramsDir)
		})
	}

	return g.Wait()
}
