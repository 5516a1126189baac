//go:build !cgo

package engine

import "math"

// NativeAvailable 原生内核是否经 cgo 编译
const NativeAvailable = false

// TransformNativeA 关闭 cgo 时的等价 Go 实现
func TransformNativeA(in, out []float32, count int, angle float32) {
	ca := float32(math.Cos(float64(angle)))
	sa := float32(math.Sin(float64(angle)))

	for i := 0; i < count; i++ {
		px, py, pz := in[i*3], in[i*3+1], in[i*3+2]
		x1 := px*ca + pz*sa
		z1 := -px*sa + pz*ca
		out[i*3] = x1
		out[i*3+1] = py*ca - z1*sa
		out[i*3+2] = py*sa + z1*ca
	}
}

// TransformNativeB 关闭 cgo 时的等价 Go 实现（4 点展开）
func TransformNativeB(in, out []float32, count int, angle float32) {
	ca := float32(math.Cos(float64(angle)))
	sa := float32(math.Sin(float64(angle)))

	i := 0
	for ; i+4 <= count; i += 4 {
		transformOne(in[(i+0)*3:], out[(i+0)*3:], ca, sa)
		transformOne(in[(i+1)*3:], out[(i+1)*3:], ca, sa)
		transformOne(in[(i+2)*3:], out[(i+2)*3:], ca, sa)
		transformOne(in[(i+3)*3:], out[(i+3)*3:], ca, sa)
	}
	for ; i < count; i++ {
		transformOne(in[i*3:], out[i*3:], ca, sa)
	}
}

func transformOne(p, o []float32, ca, sa float32) {
	z1 := -p[0]*sa + p[2]*ca
	o[0] = p[0]*ca + p[2]*sa
	o[1] = p[1]*ca - z1*sa
	o[2] = p[1]*sa + z1*ca
}
