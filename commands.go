package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/thuisdata/thuis/internal/discover"
	"github.com/thuisdata/thuis/internal/index"
	"github.com/thuisdata/thuis/internal/logging"
	"github.com/thuisdata/thuis/internal/server"
	"github.com/thuisdata/thuis/internal/server/routes"
)

const shutdownTimeout = 5 * time.Second

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "打印版本信息",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

func newCheckConfigCommand(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "校验配置文件并退出",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := configPath()
			cfg, logger, err := loadConfigAndLogger(path)
			if err != nil {
				return err
			}
			logger.WithFields(logging.BaseFields("check_config", path)).
				WithField("cache_dir", cfg.Global.CacheDir).
				WithField("seeds", len(cfg.Seeds)).
				Info("配置校验通过")
			fmt.Fprintln(cmd.OutOrStdout(), "配置校验通过")
			return nil
		},
	}
}

func newFetchCommand(configPath func() string) *cobra.Command {
	var (
		withLinks bool
		offline   bool
	)

	cmd := &cobra.Command{
		Use:   "fetch [url...]",
		Short: "解析页面（缓存优先，必要时条件请求上游）",
		Long:  "未指定 URL 时使用配置中的 Seeds；--discover 会继续解析页面内链接到的 wiki 页面。",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(configPath())
			if err != nil {
				return err
			}
			urls := args
			if len(urls) == 0 {
				urls = rt.cfg.Seeds
			}
			if len(urls) == 0 {
				return errors.New("没有可解析的页面：请传入 URL 或配置 Seeds")
			}

			log := logging.WithRun(rt.logger, "fetch")
			resolved, err := fetchPages(cmd.Context(), rt, urls, !offline, withLinks)
			if err != nil {
				log.WithError(err).WithField("resolved", resolved).Error("解析中止")
				return err
			}
			log.WithField("resolved", resolved).Info("解析完成")
			fmt.Fprintf(cmd.OutOrStdout(), "resolved %d page(s)\n", resolved)
			return nil
		},
	}
	cmd.Flags().BoolVar(&withLinks, "discover", false, "同时解析页面链接到的 wiki 页面")
	cmd.Flags().BoolVar(&offline, "offline", false, "只读缓存，不访问网络")
	return cmd
}

// fetchPages 按顺序解析 urls；任一页面失败即中止，已写入的缓存保持有效。
func fetchPages(ctx context.Context, rt *services, urls []string, allowNetwork, withLinks bool) (int, error) {
	seen := make(map[string]struct{})
	resolved := 0

	resolve := func(url string) (string, error) {
		if _, ok := seen[url]; ok {
			return "", nil
		}
		seen[url] = struct{}{}
		content, err := rt.resolver.Resolve(ctx, url, allowNetwork)
		if err != nil {
			return "", err
		}
		resolved++
		return content, nil
	}

	opts := discover.Options{
		PathPrefix:        rt.cfg.Discover.PathPrefix,
		MaxLinks:          rt.cfg.Discover.MaxLinks,
		IncludeNamespaced: rt.cfg.Discover.IncludeNamespaced,
	}

	for _, url := range urls {
		if _, ok := seen[url]; ok {
			continue
		}
		content, err := resolve(url)
		if err != nil {
			return resolved, err
		}
		if !withLinks {
			continue
		}
		links, err := discover.Links(url, content, opts)
		if err != nil {
			return resolved, fmt.Errorf("提取链接失败 %s: %w", url, err)
		}
		for _, link := range links {
			if err := ctx.Err(); err != nil {
				return resolved, err
			}
			if _, err := resolve(link); err != nil {
				return resolved, err
			}
		}
	}
	return resolved, nil
}

func newShowCommand(configPath func() string) *cobra.Command {
	var network bool

	cmd := &cobra.Command{
		Use:   "show <url>",
		Short: "输出页面内容（默认只读缓存）",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(configPath())
			if err != nil {
				return err
			}
			content, err := rt.resolver.Resolve(cmd.Context(), args[0], network)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), content)
			return err
		},
	}
	cmd.Flags().BoolVar(&network, "network", false, "允许访问上游（新页面抓取、已缓存页面重新验证）")
	return cmd
}

func newListCommand(configPath func() string) *cobra.Command {
	var sortKey string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "以表格列出缓存索引",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap(configPath())
			if err != nil {
				return err
			}
			entries, err := rt.index.LoadAll()
			if err != nil {
				return err
			}
			sortEntries(entries, sortKey)
			renderEntries(cmd, entries)
			return nil
		},
	}
	cmd.Flags().StringVar(&sortKey, "sort", "", "排序字段：url 或 filename（默认保持索引顺序）")
	return cmd
}

func sortEntries(entries []index.Entry, key string) {
	switch key {
	case "url":
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].URL < entries[j].URL })
	case "filename":
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Filename < entries[j].Filename })
	}
}

func renderEntries(cmd *cobra.Command, entries []index.Entry) {
	tw := table.NewWriter()
	tw.SetOutputMirror(cmd.OutOrStdout())
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"URL", "Bestandsnaam", "Laatste wijziging", "Redirect"})
	for _, entry := range entries {
		tw.AppendRow(table.Row{entry.URL, entry.Filename, entry.LastModified, entry.RedirectURL})
	}
	tw.AppendFooter(table.Row{"", "", "Totaal", len(entries)})
	tw.Render()
}

func newVerifyCommand(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "检查索引与正文文件是否一致",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap(configPath())
			if err != nil {
				return err
			}
			report, err := rt.resolver.Verify(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "entries: %d, blobs: %d\n", report.Entries, report.Blobs)
			for _, entry := range report.Dangling {
				fmt.Fprintf(out, "dangling: %s -> %s\n", entry.URL, entry.Filename)
			}
			for _, name := range report.Orphans {
				fmt.Fprintf(out, "orphan: %s\n", name)
			}
			if !report.Consistent() {
				return exitError{code: 1}
			}
			return nil
		},
	}
}

func newServeCommand(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动只读浏览服务（GET /page?url=...）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := configPath()
			rt, err := bootstrap(path)
			if err != nil {
				return err
			}

			app, err := server.NewApp(server.AppOptions{
				Logger:     rt.logger,
				Source:     rt.resolver,
				ListenPort: rt.cfg.Global.ListenPort,
			})
			if err != nil {
				return fmt.Errorf("HTTP 服务初始化失败: %w", err)
			}
			routes.RegisterDiagnosticsRoutes(app, rt.index, rt.resolver)

			return serve(cmd.Context(), rt, path, app)
		},
	}
}

// serve 阻塞直到监听失败或 ctx 取消；取消时优雅关闭。
func serve(ctx context.Context, rt *services, configPath string, app *fiber.App) error {
	port := rt.cfg.Global.ListenPort
	rt.logger.WithFields(logging.BaseFields("startup", configPath)).
		WithField("port", port).
		WithField("cache_dir", rt.cfg.Global.CacheDir).
		Info("浏览服务启动")

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(fmt.Sprintf(":%d", port), fiber.ListenConfig{DisableStartupMessage: true})
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP 服务异常退出: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP 服务关闭失败: %w", err)
		}
		rt.logger.WithFields(logging.BaseFields("shutdown", configPath)).Info("浏览服务已停止")
		return nil
	}
}
