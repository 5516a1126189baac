//go:build cgo

package engine

/*
#cgo CFLAGS: -O3
#cgo LDFLAGS: -lm
#include <math.h>

static void transform_a(const float* in, float* out, int count, float angle) {
	float ca = cosf(angle);
	float sa = sinf(angle);

	for (int i = 0; i < count; i++) {
		float px = in[i * 3 + 0];
		float py = in[i * 3 + 1];
		float pz = in[i * 3 + 2];

		float x1 = px * ca + pz * sa;
		float z1 = -px * sa + pz * ca;

		out[i * 3 + 0] = x1;
		out[i * 3 + 1] = py * ca - z1 * sa;
		out[i * 3 + 2] = py * sa + z1 * ca;
	}
}

static inline void transform_one(const float* restrict p, float* restrict o, float ca, float sa) {
	float z1 = -p[0] * sa + p[2] * ca;
	o[0] = p[0] * ca + p[2] * sa;
	o[1] = p[1] * ca - z1 * sa;
	o[2] = p[1] * sa + z1 * ca;
}

static void transform_b(const float* restrict in, float* restrict out, int count, float angle) {
	float ca = cosf(angle);
	float sa = sinf(angle);

	int i = 0;
	for (; i + 4 <= count; i += 4) {
		transform_one(in + (i + 0) * 3, out + (i + 0) * 3, ca, sa);
		transform_one(in + (i + 1) * 3, out + (i + 1) * 3, ca, sa);
		transform_one(in + (i + 2) * 3, out + (i + 2) * 3, ca, sa);
		transform_one(in + (i + 3) * 3, out + (i + 3) * 3, ca, sa);
	}
	for (; i < count; i++) {
		transform_one(in + i * 3, out + i * 3, ca, sa);
	}
}
*/
import "C"

import "unsafe"

// NativeAvailable 原生内核是否经 cgo 编译
const NativeAvailable = true

// TransformNativeA 调用 C 内核 A
// 缓冲区是不含 Go 指针的 float32 数组，可以直接传给 C
func TransformNativeA(in, out []float32, count int, angle float32) {
	if count <= 0 {
		return
	}
	C.transform_a(
		(*C.float)(unsafe.Pointer(&in[0])),
		(*C.float)(unsafe.Pointer(&out[0])),
		C.int(count),
		C.float(angle),
	)
}

// TransformNativeB 调用 C 内核 B
func TransformNativeB(in, out []float32, count int, angle float32) {
	if count <= 0 {
		return
	}
	C.transform_b(
		(*C.float)(unsafe.Pointer(&in[0])),
		(*C.float)(unsafe.Pointer(&out[0])),
		C.int(count),
		C.float(angle),
	)
}
