package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ImranAdan/computational-benchmarks/internal/config"
	"github.com/ImranAdan/computational-benchmarks/internal/logging"
	"github.com/ImranAdan/computational-benchmarks/internal/server"
	"github.com/ImranAdan/computational-benchmarks/pkg/engine"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := config.NewOptions()

	cmd := &cobra.Command{
		Use:   "pointstream-server",
		Short: "Live point-cloud streaming server",
		Long: `Rotates a torus point cloud with a selectable compute engine and ` +
			`streams every frame to WebSocket and tcp/kcp viewers.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// .env 不存在时忽略
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("加载 .env 失败: %w", err)
			}
			if err := opts.ApplyEnv(nil); err != nil {
				return err
			}
			return run(opts)
		},
	}
	opts.AddFlags(cmd.Flags())

	return cmd
}

func run(opts *config.Options) error {
	log, err := logging.New(opts.LogVerbosity, opts.LogDevelopment)
	if err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}

	streamServer, err := server.NewStreamServer(opts, log)
	if err != nil {
		return err
	}

	log.Info("========================================")
	log.Info("  点云流服务器")
	log.Info("========================================")
	log.Info("配置",
		"addr", opts.Addr,
		"streamAddr", opts.StreamAddr,
		"streamProto", opts.StreamProto,
		"capacity", opts.Capacity,
		"points", opts.InitialPoints,
		"fps", opts.InitialFPS,
		"engine", engine.ID(opts.InitialEngine).String(),
		"native", engine.NativeAvailable,
	)

	// 启动服务器（在新的 goroutine 中）
	errCh := make(chan error, 1)
	go func() {
		errCh <- streamServer.Start()
	}()

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errCh:
		if err != nil {
			log.Error(err, "服务器启动失败")
			streamServer.Shutdown()
			return err
		}
	case sig := <-sigChan:
		log.Info("收到信号", "signal", sig.String())
	}

	streamServer.Shutdown()
	log.Info("服务器已关闭，再见！")
	return nil
}
