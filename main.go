package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/thuisdata/thuis/internal/cache"
	"github.com/thuisdata/thuis/internal/config"
	"github.com/thuisdata/thuis/internal/fetch"
	"github.com/thuisdata/thuis/internal/index"
	"github.com/thuisdata/thuis/internal/logging"
	"github.com/thuisdata/thuis/internal/resolver"
)

const configEnv = "THUIS_CONFIG"

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

// exitError 让子命令以指定退出码结束而不额外打印错误。
type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// run 解析参数并执行子命令，返回退出码，方便测试。
func run(ctx context.Context, args []string) int {
	root := newRootCommand()
	root.SetArgs(args)
	root.SetOut(stdOut)
	root.SetErr(stdErr)

	if err := root.ExecuteContext(ctx); err != nil {
		var exit exitError
		if errors.As(err, &exit) {
			return exit.code
		}
		fmt.Fprintln(stdErr, err.Error())
		return 1
	}
	return 0
}

func newRootCommand() *cobra.Command {
	var configFlag string

	root := &cobra.Command{
		Use:           "thuis",
		Short:         "Cache and browse pages of the Thuis fandom wiki",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFlag, "config", "", "配置文件路径（可被 "+configEnv+" 覆盖；留空使用默认值）")

	configPath := func() string {
		return resolveConfigPath(configFlag)
	}

	root.AddCommand(
		newVersionCommand(),
		newCheckConfigCommand(configPath),
		newFetchCommand(configPath),
		newShowCommand(configPath),
		newListCommand(configPath),
		newVerifyCommand(configPath),
		newServeCommand(configPath),
	)
	return root
}

// resolveConfigPath flag 优先于环境变量；两者都为空时返回空串（只用默认值）。
func resolveConfigPath(flagValue string) string {
	if path := strings.TrimSpace(flagValue); path != "" {
		return path
	}
	return strings.TrimSpace(os.Getenv(configEnv))
}

// services 汇总一次命令执行所需的共享组件：配置 → 日志 → 索引 → 正文存储 → Fetcher → Resolver。
type services struct {
	cfg        *config.Config
	configPath string
	logger     *logrus.Logger
	index      *index.Index
	store      cache.Store
	resolver   *resolver.Resolver
}

func loadConfigAndLogger(configPath string) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("加载配置失败: %w", err)
	}
	logger, err := logging.InitLogger(cfg.Global, stdErr)
	if err != nil {
		return nil, nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	return cfg, logger, nil
}

func bootstrap(configPath string) (*services, error) {
	cfg, logger, err := loadConfigAndLogger(configPath)
	if err != nil {
		return nil, err
	}

	idx, err := index.Open(cfg.Global.CacheDir, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化缓存索引失败: %w", err)
	}
	store, err := cache.NewStore(cfg.Global.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("初始化缓存目录失败: %w", err)
	}

	fetcher := fetch.New(fetch.NewHTTPClient(cfg), fetch.Options{
		UserAgent: cfg.Global.UserAgent,
		Logger:    logger,
	})

	return &services{
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
		index:      idx,
		store:      store,
		resolver:   resolver.New(idx, store, fetcher, logger),
	}, nil
}
