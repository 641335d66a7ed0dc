package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hyperjump/kotae/internal/cli"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/watcher"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func serverCMD(a *app) *cobra.Command {
	var withWatch bool
	cmd := &cobra.Command{
		Use:     "server",
		Short:   "Start the HTTP server",
		PreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.logger.Sync()
			ctx, stop := signalContext()
			defer stop()

			c, err := connect(ctx, a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer c.Close()

			if withWatch {
				w, err := startWatcher(ctx, a, c)
				if err != nil {
					return err
				}
				defer w.Stop()
			}

			srv := server.NewServer(c.Engine, c.Reindexer, c.Loader, a.cfg,
				server.WithLogger(a.logger),
				server.WithMetrics(c.Metrics),
			)
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			a.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Stop(shutdownCtx)
		},
	}
	cmd.Flags().BoolVar(&withWatch, "watch", false, "rebuild when files under the docs folder change (disk backend)")
	return cmd
}

func indexCMD(a *app) *cobra.Command {
	var serverURL, output string
	cmd := &cobra.Command{
		Use:     "index",
		Short:   "Rebuild the index from the documents and publish it",
		PreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.logger.Sync()
			format, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			var res *models.IndexResult
			if serverURL != "" {
				res, err = cli.NewClient(serverURL, nil).Index(ctx)
			} else {
				var c *Components
				c, err = connect(ctx, a.cfg, a.logger)
				if err != nil {
					return err
				}
				defer c.Close()
				res, err = c.Reindexer.Run(ctx)
			}
			if err != nil {
				return fmt.Errorf("index failed: %w", err)
			}
			return cli.WriteIndexResult(cmd.OutOrStdout(), res, format)
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", "server URL (empty = build in-process)")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	return cmd
}

func askCMD(a *app) *cobra.Command {
	var (
		serverURL, output   string
		k                   int
		docIDs, tags, mimes []string
	)
	cmd := &cobra.Command{
		Use:     "ask [flags] <question>",
		Short:   "Answer a question from the indexed documents",
		Args:    cobra.MinimumNArgs(1),
		PreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.logger.Sync()
			format, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			req := &models.QueryRequest{Q: joinQuery(args), K: k, Filters: buildFilters(docIDs, tags, mimes)}
			if err := req.Validate(); err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			var resp *models.QueryResponse
			if serverURL != "" {
				resp, err = cli.NewClient(serverURL, nil).Ask(ctx, req)
			} else {
				var c *Components
				c, err = connect(ctx, a.cfg, a.logger)
				if err != nil {
					return err
				}
				defer c.Close()
				resp, err = c.Engine.Answer(ctx, req)
			}
			if err != nil {
				return err
			}
			return cli.WriteAnswer(cmd.OutOrStdout(), resp, format)
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", "server URL (empty = answer in-process)")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	cmd.Flags().IntVar(&k, "k", 0, "chunks to retrieve (0 = config top_k)")
	cmd.Flags().StringSliceVar(&docIDs, "doc-id", nil, "only use these document ids")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "only use documents with any of these tags")
	cmd.Flags().StringSliceVar(&mimes, "mime", nil, "only use documents of these content types")
	return cmd
}

// buildFilters returns nil when no filter flag was given.
func buildFilters(docIDs, tags, mimes []string) *models.QueryFilters {
	f := &models.QueryFilters{DocID: docIDs, Tags: tags, Mime: mimes}
	if f.Empty() {
		return nil
	}
	return f
}

func watchCMD(a *app) *cobra.Command {
	var skipInitial bool
	cmd := &cobra.Command{
		Use:     "watch",
		Short:   "Rebuild and republish whenever documents change (disk backend)",
		PreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.logger.Sync()
			ctx, stop := signalContext()
			defer stop()

			c, err := connect(ctx, a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer c.Close()

			if !skipInitial {
				if _, err := rebuild(ctx, a.logger, c); err != nil {
					return err
				}
			}
			w, err := startWatcher(ctx, a, c)
			if err != nil {
				return err
			}
			defer w.Stop()
			a.logger.Info("watching for changes", zap.Strings("roots", w.Directories()))
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipInitial, "no-initial", false, "skip the build at startup")
	return cmd
}

func startWatcher(ctx context.Context, a *app, c *Components) (*watcher.Watcher, error) {
	disk, ok := c.Store.(*storage.DiskStore)
	if !ok {
		return nil, fmt.Errorf("watch needs the disk backend, not %q", a.cfg.Storage.Backend)
	}
	root := disk.Path(a.cfg.Storage.DocsPrefix)
	w := watcher.NewWatcher([]string{root}, a.cfg.Index.Extensions,
		func(ctx context.Context, paths []string) {
			a.logger.Info("documents changed", zap.Int("paths", len(paths)))
			_, _ = rebuild(ctx, a.logger, c)
		},
		watcher.WithLogger(a.logger),
	)
	if err := w.Start(ctx); err != nil {
		return nil, fmt.Errorf("start watcher: %w", err)
	}
	return w, nil
}

func rebuild(ctx context.Context, logger *zap.Logger, c *Components) (*models.IndexResult, error) {
	res, err := c.Reindexer.Run(ctx)
	if err != nil {
		logger.Error("rebuild failed", zap.Error(err))
		return nil, err
	}
	logger.Info("rebuild finished",
		zap.String("build_id", res.BuildID),
		zap.Int("chunks", res.Count),
		zap.String("msg", res.Msg),
	)
	return res, nil
}

func statusCMD(a *app) *cobra.Command {
	var serverURL, output string
	cmd := &cobra.Command{
		Use:     "status",
		Short:   "Show index status and configuration",
		PreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer a.logger.Sync()
			format, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			var st *models.Status
			if serverURL != "" {
				st, err = cli.NewClient(serverURL, nil).Status(ctx)
				if err != nil {
					return fmt.Errorf("status failed: %w", err)
				}
			} else {
				c, err := connect(ctx, a.cfg, a.logger)
				if err != nil {
					return err
				}
				defer c.Close()
				if _, err := c.Loader.EnsureLoaded(ctx); err != nil && !errors.Is(err, models.ErrIndexUnavailable) {
					return err
				}
				s := server.StatusOf(c.Loader.Current(), a.cfg)
				st = &s
			}
			return cli.WriteStatus(cmd.OutOrStdout(), st, format)
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", "server URL (empty = read the published index directly)")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	return cmd
}

func versionCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "kotae version %s\n", version)
		},
	}
}
