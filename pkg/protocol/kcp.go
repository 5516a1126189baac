package protocol

import (
	kcp "github.com/xtaci/kcp-go/v5"
)

// kcp 快速重传和拥塞控制固定为低延迟配置
const (
	kcpResend   = 2
	kcpNoCongWn = 1
)

// KCPTuning kcp 会话参数，服务端和客户端两侧各自应用
type KCPTuning struct {
	NoDelay  bool // nodelay 模式
	Interval int  // 内部刷新间隔（毫秒）
	Window   int  // 收发窗口，需容纳整帧点云
}

// DefaultKCPTuning 低延迟模式，大窗口
func DefaultKCPTuning() KCPTuning {
	return KCPTuning{NoDelay: true, Interval: 10, Window: 1024}
}

// Apply 包边界由长度前缀保证，所以使用流模式
func (t KCPTuning) Apply(session *kcp.UDPSession) {
	nodelay := 0
	if t.NoDelay {
		nodelay = 1
	}
	session.SetStreamMode(true)
	session.SetWriteDelay(false)
	session.SetNoDelay(nodelay, t.Interval, kcpResend, kcpNoCongWn)
	session.SetWindowSize(t.Window, t.Window)
}
