package main

import (
	"fmt"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/spf13/cobra"

	"github.com/ImranAdan/computational-benchmarks/internal/client"
	"github.com/ImranAdan/computational-benchmarks/internal/client/stream"
	"github.com/ImranAdan/computational-benchmarks/internal/logging"
	"github.com/ImranAdan/computational-benchmarks/pkg/core"
)

type clientOptions struct {
	server    string
	proto     string
	capacity  uint32
	engine    uint32
	fps       uint32
	points    uint32
	verbosity int
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := clientOptions{
		server:    "localhost:8080",
		proto:     "ws",
		capacity:  core.DefaultCapacity,
		fps:       core.DefaultTargetFPS,
		points:    core.DefaultInitialPoints,
		verbosity: logging.DEFAULT,
	}

	cmd := &cobra.Command{
		Use:          "pointstream-viewer",
		Short:        "Desktop viewer for the point-cloud stream",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&opts.server, "server", opts.server, "服务器地址（ws 为 HTTP 地址，tcp/kcp 为流式地址）")
	fs.StringVar(&opts.proto, "proto", opts.proto, "连接协议: ws, tcp 或 kcp")
	fs.Uint32Var(&opts.capacity, "capacity", opts.capacity, "服务器最大点数")
	fs.Uint32Var(&opts.engine, "engine", opts.engine, "服务器当前引擎")
	fs.Uint32Var(&opts.fps, "fps", opts.fps, "服务器当前目标帧率")
	fs.Uint32Var(&opts.points, "points", opts.points, "服务器当前点数")
	fs.IntVarP(&opts.verbosity, "v", "v", opts.verbosity, "日志详细级别")

	return cmd
}

func run(opts clientOptions) error {
	log, err := logging.New(opts.verbosity, true)
	if err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}

	network := stream.NewNetworkClient(opts.server, opts.proto, int(opts.capacity), log)
	if err := network.Connect(); err != nil {
		return err
	}
	defer network.Close()

	viewer := client.NewViewer(network, stream.Settings{
		Engine:    opts.engine,
		TargetFPS: opts.fps,
		Points:    opts.points,
		Capacity:  opts.capacity,
	}, log)

	// 设置窗口选项
	ebiten.SetWindowSize(client.ScreenWidth, client.ScreenHeight)
	ebiten.SetWindowTitle("Point Cloud Viewer [" + opts.server + "] [" + opts.proto + "]")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(client.TPS)

	if err := ebiten.RunGame(viewer); err != nil {
		return err
	}
	return nil
}
