package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// 流式传输（tcp/kcp）上每个包前有 4 字节大端长度
const (
	MaxControlPacketSize = 4096 // 客户端上行包上限
)

var ErrPacketTooLarge = errors.New("消息过大")

// WritePacket 写入长度前缀和数据体
func WritePacket(w io.Writer, data []byte) error {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(data)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("发送长度失败: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("发送数据失败: %w", err)
	}
	return nil
}

// ReadPacket 读取一个长度前缀包；长度为 0 时返回空切片
func ReadPacket(r io.Reader, maxSize int) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(header[:])
	if int64(length) > int64(maxSize) {
		return nil, fmt.Errorf("%w (%d bytes)", ErrPacketTooLarge, length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}
