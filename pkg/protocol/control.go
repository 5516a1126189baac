package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// CommandKind 控制命令类型
type CommandKind int

const (
	CommandUnknown CommandKind = iota
	CommandSelectEngine
	CommandSetTargetFPS
	CommandSetPointCount
)

// 线上的命令名
const (
	KindEngine   = "engine"
	KindFPS      = "fps"
	KindVertices = "vertices"
)

var (
	ErrMalformedCommand = errors.New("控制消息格式错误")
	ErrUnknownCommand   = errors.New("未知控制命令")
)

// Command 解码后的控制命令，处理完即丢弃
type Command struct {
	Kind  CommandKind
	Value uint32
}

// String 返回线上命令名
func (k CommandKind) String() string {
	switch k {
	case CommandSelectEngine:
		return KindEngine
	case CommandSetTargetFPS:
		return KindFPS
	case CommandSetPointCount:
		return KindVertices
	default:
		return "unknown"
	}
}

// ControlMessage JSON 控制消息 {"type":"fps","value":30}
type ControlMessage struct {
	Type  string `json:"type"`
	Value uint32 `json:"value"`
}

// 二进制控制消息字段号
const (
	fieldKind  protowire.Number = 1
	fieldValue protowire.Number = 2
)

// ParseKind 把线上命令名转换为 CommandKind
func ParseKind(kind string) CommandKind {
	switch kind {
	case KindEngine:
		return CommandSelectEngine
	case KindFPS:
		return CommandSetTargetFPS
	case KindVertices:
		return CommandSetPointCount
	default:
		return CommandUnknown
	}
}

// DecodeCommand 解析控制消息：以 '{' 开头按 JSON，否则按 protowire
func DecodeCommand(data []byte) (Command, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Command{}, ErrMalformedCommand
	}
	if trimmed[0] == '{' {
		return DecodeJSONCommand(trimmed)
	}
	return DecodeWireCommand(data)
}

// DecodeJSONCommand 解析 JSON 控制消息
func DecodeJSONCommand(data []byte) (Command, error) {
	var msg struct {
		Type  *string `json:"type"`
		Value *uint32 `json:"value"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}
	if msg.Type == nil || msg.Value == nil {
		return Command{}, fmt.Errorf("%w: 缺少字段", ErrMalformedCommand)
	}
	return newCommand(*msg.Type, uint64(*msg.Value))
}

// DecodeWireCommand 解析二进制控制消息（字段 1: kind, 字段 2: value），跳过未知字段
func DecodeWireCommand(data []byte) (Command, error) {
	var (
		kind     string
		value    uint64
		hasKind  bool
		hasValue bool
	)

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return Command{}, fmt.Errorf("%w: %v", ErrMalformedCommand, protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == fieldKind && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(data)
			if m < 0 {
				return Command{}, fmt.Errorf("%w: %v", ErrMalformedCommand, protowire.ParseError(m))
			}
			kind, hasKind = v, true
			n = m
		case num == fieldValue && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return Command{}, fmt.Errorf("%w: %v", ErrMalformedCommand, protowire.ParseError(m))
			}
			value, hasValue = v, true
			n = m
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return Command{}, fmt.Errorf("%w: %v", ErrMalformedCommand, protowire.ParseError(n))
			}
		}
		data = data[n:]
	}

	if !hasKind || !hasValue {
		return Command{}, fmt.Errorf("%w: 缺少字段", ErrMalformedCommand)
	}
	return newCommand(kind, value)
}

func newCommand(kind string, value uint64) (Command, error) {
	if value > math.MaxUint32 {
		return Command{}, fmt.Errorf("%w: 数值溢出 %d", ErrMalformedCommand, value)
	}
	k := ParseKind(kind)
	if k == CommandUnknown {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, kind)
	}
	return Command{Kind: k, Value: uint32(value)}, nil
}

// EncodeJSONCommand 编码 JSON 控制消息
func EncodeJSONCommand(cmd Command) ([]byte, error) {
	return json.Marshal(ControlMessage{Type: cmd.Kind.String(), Value: cmd.Value})
}

// EncodeWireCommand 编码二进制控制消息
func EncodeWireCommand(cmd Command) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldKind, protowire.BytesType)
	b = protowire.AppendString(b, cmd.Kind.String())
	b = protowire.AppendTag(b, fieldValue, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(cmd.Value))
	return b
}
