// Package render 把点云投影到 RGBA 像素缓冲区
package render

import (
	"math"
)

// Camera 固定在 -Z 方向看向原点的透视相机
type Camera struct {
	Distance float32 // 相机到原点的距离
	FOV      float32 // 垂直视场角（弧度）
	Near     float32
}

// DefaultCamera 能完整看到半径 2.5 的圆环
func DefaultCamera() Camera {
	return Camera{
		Distance: 7,
		FOV:      math.Pi / 4,
		Near:     0.1,
	}
}

// Project 把世界坐标投影到屏幕像素；落在相机后方或屏幕外时 ok 为 false
func (c Camera) Project(x, y, z float32, width, height int) (px, py int, depth float32, ok bool) {
	depth = z + c.Distance
	if depth <= c.Near {
		return 0, 0, 0, false
	}

	focal := float32(height) / 2 / float32(math.Tan(float64(c.FOV)/2))
	sx := float32(width)/2 + x*focal/depth
	sy := float32(height)/2 - y*focal/depth
	if sx < 0 || sy < 0 {
		return 0, 0, 0, false
	}

	px, py = int(sx), int(sy)
	if px >= width || py >= height {
		return 0, 0, 0, false
	}
	return px, py, depth, true
}

// Canvas 像素缓冲区，可直接交给 ebiten.Image.WritePixels
type Canvas struct {
	Width  int
	Height int
	Pix    []byte
}

// NewCanvas 创建画布
func NewCanvas(width, height int) *Canvas {
	return &Canvas{
		Width:  width,
		Height: height,
		Pix:    make([]byte, width*height*4),
	}
}

// Clear 填充背景色
func (cv *Canvas) Clear(r, g, b byte) {
	for i := 0; i < len(cv.Pix); i += 4 {
		cv.Pix[i] = r
		cv.Pix[i+1] = g
		cv.Pix[i+2] = b
		cv.Pix[i+3] = 0xff
	}
}

// At 返回像素的 RGBA 分量
func (cv *Canvas) At(x, y int) (r, g, b, a byte) {
	i := (y*cv.Width + x) * 4
	return cv.Pix[i], cv.Pix[i+1], cv.Pix[i+2], cv.Pix[i+3]
}

// DrawPoints 绘制扁平点云，近处更亮；返回实际落在屏幕内的点数
func (cv *Canvas) DrawPoints(points []float32, cam Camera) int {
	near := cam.Distance - 3
	far := cam.Distance + 3

	drawn := 0
	for i := 0; i+2 < len(points); i += 3 {
		px, py, depth, ok := cam.Project(points[i], points[i+1], points[i+2], cv.Width, cv.Height)
		if !ok {
			continue
		}

		shade := 1 - (depth-near)/(far-near)
		shade = min(max(shade, 0.25), 1)

		idx := (py*cv.Width + px) * 4
		cv.Pix[idx] = byte(80 * shade)
		cv.Pix[idx+1] = byte(200 * shade)
		cv.Pix[idx+2] = byte(255 * shade)
		cv.Pix[idx+3] = 0xff
		drawn++
	}
	return drawn
}
