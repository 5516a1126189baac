// Package config 服务端命令行配置
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/time/rate"

	"github.com/ImranAdan/computational-benchmarks/internal/logging"
	"github.com/ImranAdan/computational-benchmarks/pkg/core"
	"github.com/ImranAdan/computational-benchmarks/pkg/protocol"
)

// EnvPrefix 环境变量前缀，例如 POINTSTREAM_ADDR
const EnvPrefix = "POINTSTREAM_"

const (
	DefaultAddr         = ":8080"
	DefaultStaticDir    = "static"
	DefaultQueueDepth   = 4
	DefaultCommandRate  = 0 // 0 表示不限速
	DefaultCommandBurst = 20
	DefaultKCPInterval  = 10
	DefaultKCPWindow    = 1024
)

// Options 服务端配置
type Options struct {
	//
	// 网络
	//
	Addr        string // HTTP/WebSocket 监听地址
	StreamAddr  string // 原生客户端流式监听地址，空表示关闭
	StreamProto string // tcp | kcp
	StaticDir   string // 静态资源目录
	//
	// 原生客户端传输
	//
	StreamNoDelay bool // tcp 关闭 Nagle / kcp 开启 nodelay 模式
	KCPInterval   int  // kcp 内部刷新间隔（毫秒）
	KCPWindow     int  // kcp 收发窗口（包数）
	//
	// 仿真
	//
	Capacity      int    // 最大点数
	InitialPoints int    // 初始点数
	InitialFPS    uint32 // 初始目标帧率，0 表示不限（约 200 FPS）
	InitialEngine uint32 // 初始引擎
	//
	// 分发与控制
	//
	QueueDepth   int     // 每个订阅者的帧队列深度
	CommandRate  float64 // 每连接每秒控制命令数，0 表示不限速
	CommandBurst int     // 控制命令突发上限
	//
	// 诊断
	//
	LogVerbosity   int
	LogDevelopment bool

	fs *pflag.FlagSet
}

// NewOptions 返回默认配置
func NewOptions() *Options {
	return &Options{
		Addr:          DefaultAddr,
		StreamProto:   "tcp",
		StaticDir:     DefaultStaticDir,
		StreamNoDelay: true,
		KCPInterval:   DefaultKCPInterval,
		KCPWindow:     DefaultKCPWindow,
		Capacity:      core.DefaultCapacity,
		InitialPoints: core.DefaultInitialPoints,
		InitialFPS:    core.DefaultTargetFPS,
		QueueDepth:    DefaultQueueDepth,
		CommandRate:   DefaultCommandRate,
		CommandBurst:  DefaultCommandBurst,
		LogVerbosity:  logging.DEFAULT,
	}
}

// AddFlags 绑定命令行参数
func (opts *Options) AddFlags(fs *pflag.FlagSet) {
	if fs == nil {
		fs = pflag.CommandLine
	}
	opts.fs = fs

	fs.StringVar(&opts.Addr, "addr", opts.Addr, "HTTP/WebSocket 监听地址")
	fs.StringVar(&opts.StreamAddr, "stream-addr", opts.StreamAddr, "原生客户端监听地址（为空则关闭）")
	fs.StringVar(&opts.StreamProto, "stream-proto", opts.StreamProto, "原生客户端协议: tcp 或 kcp")
	fs.StringVar(&opts.StaticDir, "static-dir", opts.StaticDir, "静态资源目录")
	fs.BoolVar(&opts.StreamNoDelay, "stream-nodelay", opts.StreamNoDelay, "原生客户端低延迟发送（tcp 关闭 Nagle，kcp nodelay）")
	fs.IntVar(&opts.KCPInterval, "kcp-interval", opts.KCPInterval, "kcp 刷新间隔（毫秒）")
	fs.IntVar(&opts.KCPWindow, "kcp-window", opts.KCPWindow, "kcp 收发窗口大小")
	fs.IntVar(&opts.Capacity, "capacity", opts.Capacity, "最大点数（启动后固定）")
	fs.IntVar(&opts.InitialPoints, "points", opts.InitialPoints, "初始点数")
	fs.Uint32Var(&opts.InitialFPS, "fps", opts.InitialFPS, "初始目标帧率，0 表示不限")
	fs.Uint32Var(&opts.InitialEngine, "engine", opts.InitialEngine, "初始引擎: 0=reference 1=native-a 2=native-b 3=parallel")
	fs.IntVar(&opts.QueueDepth, "queue-depth", opts.QueueDepth, "每个订阅者的帧队列深度")
	fs.Float64Var(&opts.CommandRate, "command-rate", opts.CommandRate, "每连接每秒允许的控制命令数，0 表示不限速")
	fs.IntVar(&opts.CommandBurst, "command-burst", opts.CommandBurst, "控制命令突发上限（仅在限速时生效）")
	fs.IntVarP(&opts.LogVerbosity, "v", "v", opts.LogVerbosity, "日志详细级别")
	fs.BoolVar(&opts.LogDevelopment, "log-dev", opts.LogDevelopment, "开发模式日志（彩色、带堆栈）")
}

// ApplyEnv 用 POINTSTREAM_* 环境变量填充未在命令行显式设置的参数
func (opts *Options) ApplyEnv(lookup func(string) (string, bool)) error {
	if opts.fs == nil {
		return nil
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}

	var firstErr error
	opts.fs.VisitAll(func(f *pflag.Flag) {
		if f.Changed || firstErr != nil {
			return
		}
		key := EnvPrefix + strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
		val, ok := lookup(key)
		if !ok {
			return
		}
		if err := opts.fs.Set(f.Name, val); err != nil {
			firstErr = fmt.Errorf("环境变量 %s=%q 无效: %w", key, val, err)
		}
	})
	return firstErr
}

// Validate 检查配置
func (opts *Options) Validate() error {
	if opts.Addr == "" {
		return fmt.Errorf("flag %q 不能为空", "addr")
	}
	if opts.StreamProto != "tcp" && opts.StreamProto != "kcp" {
		return fmt.Errorf("flag %q 的值 %q 无效: 只支持 tcp 或 kcp", "stream-proto", opts.StreamProto)
	}
	if opts.Capacity <= 0 {
		return fmt.Errorf("flag %q 的值 %d 无效: 必须 > 0", "capacity", opts.Capacity)
	}
	if opts.InitialPoints < 0 || opts.InitialPoints > opts.Capacity {
		return fmt.Errorf("flag %q 的值 %d 无效: 必须在 [0, %d] 内", "points", opts.InitialPoints, opts.Capacity)
	}
	if opts.QueueDepth < 1 {
		return fmt.Errorf("flag %q 的值 %d 无效: 必须 >= 1", "queue-depth", opts.QueueDepth)
	}
	if opts.CommandRate < 0 || (opts.CommandRate > 0 && opts.CommandBurst < 1) {
		return fmt.Errorf("控制命令限速无效: rate=%v burst=%d", opts.CommandRate, opts.CommandBurst)
	}
	if opts.KCPInterval < 1 || opts.KCPWindow < 1 {
		return fmt.Errorf("kcp 参数无效: interval=%d window=%d", opts.KCPInterval, opts.KCPWindow)
	}
	if opts.LogVerbosity < 0 {
		return fmt.Errorf("flag %q 的值 %d 无效: 必须 >= 0", "v", opts.LogVerbosity)
	}
	return nil
}

// CommandLimit 每连接控制命令的令牌桶速率，未配置时不限速
func (opts *Options) CommandLimit() rate.Limit {
	if opts.CommandRate == 0 {
		return rate.Inf
	}
	return rate.Limit(opts.CommandRate)
}

// KCPTuning 原生客户端 kcp 会话参数
func (opts *Options) KCPTuning() protocol.KCPTuning {
	return protocol.KCPTuning{
		NoDelay:  opts.StreamNoDelay,
		Interval: opts.KCPInterval,
		Window:   opts.KCPWindow,
	}
}
