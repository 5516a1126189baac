package stream

import (
	"github.com/ImranAdan/computational-benchmarks/pkg/engine"
	"github.com/ImranAdan/computational-benchmarks/pkg/protocol"
)

// Action 查看器上的一个操作
type Action int

const (
	ActionEngineReference Action = iota
	ActionEngineNativeA
	ActionEngineNativeB
	ActionEngineParallel
	ActionFPSUp
	ActionFPSDown
	ActionPointsHalve
	ActionPointsDouble
)

const (
	FPSStep = 10
	MaxFPS  = 240
)

// Settings 客户端记录的最近一次请求的状态
// 服务端不回显配置，所以由客户端自己推算下一条命令
type Settings struct {
	Engine    uint32
	TargetFPS uint32
	Points    uint32
	Capacity  uint32
}

// Apply 把操作转换为控制命令并更新本地状态；不改变状态的操作不产生命令
func (s *Settings) Apply(actions []Action) []protocol.Command {
	var cmds []protocol.Command
	for _, a := range actions {
		if cmd, ok := s.apply(a); ok {
			cmds = append(cmds, cmd)
		}
	}
	return cmds
}

func (s *Settings) apply(a Action) (protocol.Command, bool) {
	switch a {
	case ActionEngineReference, ActionEngineNativeA, ActionEngineNativeB, ActionEngineParallel:
		id := uint32(engine.Reference) + uint32(a-ActionEngineReference)
		if id == s.Engine {
			return protocol.Command{}, false
		}
		s.Engine = id
		return protocol.Command{Kind: protocol.CommandSelectEngine, Value: id}, true

	case ActionFPSUp:
		// 0 表示不限，再往上没有意义
		if s.TargetFPS == 0 {
			return protocol.Command{}, false
		}
		next := min(s.TargetFPS+FPSStep, MaxFPS)
		if next == s.TargetFPS {
			return protocol.Command{}, false
		}
		s.TargetFPS = next
		return protocol.Command{Kind: protocol.CommandSetTargetFPS, Value: next}, true

	case ActionFPSDown:
		if s.TargetFPS == 0 {
			return protocol.Command{}, false
		}
		var next uint32
		if s.TargetFPS > FPSStep {
			next = s.TargetFPS - FPSStep
		}
		s.TargetFPS = next
		return protocol.Command{Kind: protocol.CommandSetTargetFPS, Value: next}, true

	case ActionPointsHalve:
		if s.Points == 0 {
			return protocol.Command{}, false
		}
		s.Points /= 2
		return protocol.Command{Kind: protocol.CommandSetPointCount, Value: s.Points}, true

	case ActionPointsDouble:
		next := min(max(s.Points*2, 1), s.Capacity)
		if next == s.Points {
			return protocol.Command{}, false
		}
		s.Points = next
		return protocol.Command{Kind: protocol.CommandSetPointCount, Value: next}, true
	}
	return protocol.Command{}, false
}
