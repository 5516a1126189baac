package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// FrameHeaderSize 帧头：一个 float32（计算耗时，微秒）
const FrameHeaderSize = 4

var ErrShortFrame = errors.New("帧长度不足")

// FrameSize 返回 count 个点的帧字节数
func FrameSize(count int) int {
	return FrameHeaderSize + count*3*4
}

// EncodeFrame 打包一帧：latency_us 后接 points（本机字节序 float32）
// 返回的切片是新分配的，之后不会再被修改
func EncodeFrame(latencyUS float32, points []float32) []byte {
	buf := make([]byte, FrameHeaderSize+len(points)*4)
	binary.NativeEndian.PutUint32(buf[0:4], math.Float32bits(latencyUS))

	off := FrameHeaderSize
	for _, v := range points {
		binary.NativeEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
		off += 4
	}
	return buf
}

// DecodedFrame 客户端解包后的帧
type DecodedFrame struct {
	LatencyUS float32
	Points    []float32
}

// Count 点数
func (f *DecodedFrame) Count() int {
	return len(f.Points) / 3
}

// DecodeFrame 解包一帧，points 复用 dst 的底层数组（容量足够时）
func DecodeFrame(data []byte, dst []float32) (DecodedFrame, error) {
	if len(data) < FrameHeaderSize {
		return DecodedFrame{}, ErrShortFrame
	}
	body := data[FrameHeaderSize:]
	if len(body)%12 != 0 {
		return DecodedFrame{}, fmt.Errorf("帧体 %d 字节不是整数个点", len(body))
	}

	n := len(body) / 4
	if cap(dst) < n {
		dst = make([]float32, n)
	}
	dst = dst[:n]
	for i := range dst {
		dst[i] = math.Float32frombits(binary.NativeEndian.Uint32(body[i*4:]))
	}

	return DecodedFrame{
		LatencyUS: math.Float32frombits(binary.NativeEndian.Uint32(data[0:4])),
		Points:    dst,
	}, nil
}
