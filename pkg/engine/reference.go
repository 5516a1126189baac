package engine

import "math"

// TransformReference 参考实现
// 第二次旋转作用于第一次旋转的中间结果，不是标准旋转矩阵，保持原样
func TransformReference(in, out []float32, count int, angle float32) {
	ca := float32(math.Cos(float64(angle)))
	sa := float32(math.Sin(float64(angle)))
	transformRange(in, out, 0, count, ca, sa)
}

func transformRange(in, out []float32, from, to int, ca, sa float32) {
	for i := from; i < to; i++ {
		px := in[i*3+0]
		py := in[i*3+1]
		pz := in[i*3+2]

		mid := -px*sa + pz*ca
		out[i*3+0] = px*ca + pz*sa
		out[i*3+1] = py*ca - mid*sa
		out[i*3+2] = py*sa + mid*ca
	}
}
