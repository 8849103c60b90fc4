package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"dicom-index/internal/config"
	"dicom-index/internal/database"
	"dicom-index/internal/discovery"
	"dicom-index/internal/enumerate"
	"dicom-index/internal/filesystem"
	"dicom-index/internal/handlers"
	"dicom-index/internal/header"
	"dicom-index/internal/indexer"
	"dicom-index/internal/logging"
	"dicom-index/internal/memory"
	"dicom-index/internal/metrics"
	"dicom-index/internal/startup"
)

var errAborted = errors.New("aborted")

const shutdownTimeout = 5 * time.Second

// prompt is where the append confirmation is asked.
type prompt struct {
	in          io.Reader
	out         io.Writer
	interactive bool
	yes         bool
}

func newIndexCommand(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "index ROOT [DATABASE]",
		Short: "Catalogue the DICOM files below ROOT",
		Long: `Walk ROOT, read the header of every candidate file and add new patients,
studies, series and instances to the catalog. Files recorded by earlier runs
are not opened again, so an interrupted run can simply be repeated.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.load(args, 1)
			if err != nil {
				return err
			}
			p := prompt{
				in:          cmd.InOrStdin(),
				out:         cmd.ErrOrStderr(),
				interactive: isInteractive(cmd.InOrStdin()),
				yes:         yes,
			}
			return runIndex(cmd.Context(), a.log, cfg, args[0], p, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringP("strategy", "s", discovery.All, "discovery strategy: "+strings.Join(discovery.Names(), ", "))
	f.IntP("workers", "w", 0, "concurrent header parses (0 sizes the pool from the CPU count)")
	f.Int("queue-size", enumerate.DefaultQueueSize, "paths buffered ahead of the parsers")
	f.Duration("enumerator-timeout", enumerate.DefaultTimeout, "longest wait for the next discovered path")
	f.Bool("skip-hidden", true, "skip files and directories starting with a dot")
	f.StringSlice("exclude", nil, "doublestar pattern of root-relative paths to skip (repeatable)")
	f.String("metrics-addr", "", "serve /progress and /metrics on this address during the run")
	f.Duration("progress-interval", 5*time.Second, "interval between progress log lines")
	f.BoolVarP(&yes, "yes", "y", false, "append to an existing catalog without asking")

	bindFlags(a.v, f, map[string]string{
		"strategy":           "strategy",
		"workers":            "workers",
		"queue-size":         "queue_size",
		"enumerator-timeout": "enumerator.timeout",
		"skip-hidden":        "skip_hidden",
		"exclude":            "exclude",
		"metrics-addr":       "metrics_addr",
		"progress-interval":  "progress_interval",
	})

	return cmd
}

func bindFlags(v *viper.Viper, f *pflag.FlagSet, keys map[string]string) {
	for flag, key := range keys {
		_ = v.BindPFlag(key, f.Lookup(flag))
	}
}

func runIndex(ctx context.Context, log zerolog.Logger, cfg *config.Config, root string, p prompt, out io.Writer) error {
	memory.ConfigureFromEnv(log)
	startup.LogSystemInfo(log)

	retry := cfg.FilesystemRetry()
	retry.Observer = metrics.NewFilesystemObserver()
	fsLog := logging.Component(log, "filesystem")
	retry.Log = &fsLog

	root, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	info, err := filesystem.StatWithRetry(root, retry)
	if err != nil {
		return fmt.Errorf("archive root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("archive root %s is not a directory", root)
	}

	if database.Exists(cfg.Database) {
		ok, err := confirmAppend(p, cfg.Database)
		if err != nil {
			return err
		}
		if !ok {
			return errAborted
		}
	}

	if err := startup.EnsureDatabaseDir(cfg.Database, log); err != nil {
		return err
	}
	db, err := database.New(ctx, cfg.Database, logging.Component(log, "database"))
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer db.Close()

	metrics.InitializeMetrics()

	strategy, err := discovery.New(cfg.Strategy, discovery.Options{
		SkipHidden: cfg.SkipHidden,
		Exclude:    cfg.Exclude,
		Retry:      retry,
		Log:        logging.Component(log, "discovery"),
	})
	if err != nil {
		return err
	}

	idx := indexer.New(db, indexer.Config{
		Root:       root,
		Strategy:   strategy,
		Parser:     header.NewDICOMParser(header.Keywords(), retry, logging.Component(log, "header")),
		Workers:    cfg.WorkerCount(),
		Enumerator: cfg.EnumeratorOptions(),
		Log:        logging.Component(log, "indexer"),
	})

	var report indexer.Report
	done := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)

	if cfg.MetricsAddr != "" {
		collector := metrics.NewCollector(db, cfg.ProgressInterval, logging.Component(log, "metrics"))
		collector.Start()
		defer collector.Stop()

		if err := serve(g, done, cfg.MetricsAddr, handlers.New(idx, db, logging.Component(log, "http")), log); err != nil {
			return err
		}
	}

	g.Go(func() error {
		defer close(done)
		var err error
		report, err = idx.Run(gctx)
		return err
	})
	g.Go(func() error {
		reportProgress(done, idx, cfg.ProgressInterval, log)
		return nil
	})

	err = g.Wait()
	if report.Run.ID != "" {
		fmt.Fprintln(out, report.Summary.String())
		fmt.Fprintf(out, "Run %s on %s took %s\n", report.Run.ID, cfg.Database, report.Duration.Round(time.Millisecond))
	}
	return err
}

// serve starts the progress server in g and stops it once done is closed.
// Listening happens before the run starts so that a bad address fails fast.
func serve(g *errgroup.Group, done <-chan struct{}, addr string, h *handlers.Handlers, log zerolog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("progress server: %w", err)
	}

	router := h.Router()
	startup.LogRoutes(log, router)
	srv := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	startup.LogServerStarted(log, ln.Addr().String())

	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("progress server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-done
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(ctx)
	})
	return nil
}

func reportProgress(done <-chan struct{}, idx *indexer.Indexer, interval time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			logProgress(log, idx.Progress())
		}
	}
}

// logProgress logs the progress tuple. A trailing "+" marks a discovered
// count that may still grow.
func logProgress(log zerolog.Logger, p indexer.Progress) {
	discovered := humanize.Comma(int64(p.Discovered))
	if !p.DiscoveryFinished {
		discovered += "+"
	}
	log.Info().
		Str("discovered", discovered).
		Str("submitted", humanize.Comma(int64(p.Submitted))).
		Int("in_flight", p.InFlight).
		Str("done", humanize.Comma(int64(p.Processed))).
		Msg(p.Summary.String())
}

// confirmAppend asks before writing into an existing catalog. Without a
// terminal there is nobody to ask, so --yes is required.
func confirmAppend(p prompt, path string) (bool, error) {
	if p.yes {
		return true, nil
	}
	if !p.interactive {
		return false, fmt.Errorf("catalog %s already exists; pass --yes to append to it", path)
	}

	fmt.Fprintf(p.out, "Catalog %s already exists. Append to it? [y/N]: ", path)
	line, err := bufio.NewReader(p.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func isInteractive(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
