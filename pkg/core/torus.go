package core

import "math"

// GenerateTorus 生成 n 个点的圆环点云（确定性：相同 n 得到逐位相同的数据）
func GenerateTorus(n int) []float32 {
	if n <= 0 {
		return []float32{}
	}

	points := make([]float32, 0, n*FloatsPerPoint)
	for i := 0; i < n; i++ {
		u := float32(i) / float32(n) * math.Pi * 2
		v := float32(i) * TorusWindStep * math.Pi * 2

		ring := TorusMajorRadius + TorusMinorRadius*cos32(v)
		points = append(points,
			ring*cos32(u),
			ring*sin32(u),
			TorusMinorRadius*sin32(v),
		)
	}
	return points
}

func cos32(x float32) float32 { return float32(math.Cos(float64(x))) }
func sin32(x float32) float32 { return float32(math.Sin(float64(x))) }
