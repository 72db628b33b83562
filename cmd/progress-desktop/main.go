package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"progress-map/internal/app"
	"progress-map/internal/platform/logging"
	"progress-map/internal/services/webapp"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

// 这个“desktop”入口：一键启动内置 Web UI/API，并自动打开浏览器到地图页面。
// 不引入 webview 等 GUI 依赖，避免 CGO/打包复杂度。
func newRootCmd() *cobra.Command {
	var (
		configPath string
		listen     string
		noOpen     bool
		verbose    bool
	)
	cmd := &cobra.Command{
		Use:           "progress-desktop",
		Short:         "Start the progress map locally and open it in the browser",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.ListenAddr = listen
			}
			logger, err := logging.New(cfg.LogLevel, verbose)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			g, gctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				return webapp.Run(gctx, webapp.Options{
					DBPath:         cfg.DBPath,
					CatalogPath:    cfg.CatalogPath,
					DeploymentsCSV: cfg.DeploymentsCSV,
					GeoJSONPath:    cfg.GeoJSONPath,
					ListenAddr:     cfg.ListenAddr,
					ReportUser:     cfg.ReportUser,
					ReportDir:      cfg.ReportDir,
					SessionTTL:     cfg.SessionTTL,
					EnableMetrics:  cfg.Metrics,
					Logger:         logger,
				})
			})

			if !noOpen {
				uiURL := "http://" + normalizeListenForBrowser(cfg.ListenAddr)
				g.Go(func() error {
					// 等服务起来再打开浏览器（减少“空白页/加载失败”的概率）
					if err := waitForHTTP(gctx, uiURL+"/api/health", 12*time.Second); err != nil {
						logger.Warn("webapp not reachable; browser not opened", zap.Error(err))
						return nil
					}
					if err := openBrowser(uiURL); err != nil {
						logger.Warn("open browser", zap.Error(err))
					}
					return nil
				})
			}
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "YAML config file")
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&noOpen, "no-open", false, "do not auto-open browser")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	return cmd
}

func normalizeListenForBrowser(listen string) string {
	// listen 常见形态：127.0.0.1:8787 / 0.0.0.0:8787 / :8787 / [::]:8787
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return listen
	}
	switch host {
	case "", "0.0.0.0", "::", "[::]":
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

func waitForHTTP(ctx context.Context, url string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
	return fmt.Errorf("timeout waiting for %s", url)
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", "", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	// 浏览器打开与否不影响服务运行。
	return cmd.Start()
}
