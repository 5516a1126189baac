package client

import (
	"fmt"
	"image/color"
	"time"

	"github.com/go-logr/logr"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/image/font/basicfont"

	"github.com/ImranAdan/computational-benchmarks/internal/client/render"
	"github.com/ImranAdan/computational-benchmarks/internal/client/stream"
	"github.com/ImranAdan/computational-benchmarks/internal/logging"
	"github.com/ImranAdan/computational-benchmarks/pkg/engine"
	"github.com/ImranAdan/computational-benchmarks/pkg/protocol"
)

const (
	ScreenWidth  = 960
	ScreenHeight = 720
	TPS          = 60
)

var hudFont = text.NewGoXFace(basicfont.Face7x13)

// Viewer 点云查看器：渲染最新帧，键盘发送控制命令
type Viewer struct {
	network *stream.NetworkClient
	log     logr.Logger
	input   keyTracker

	canvas *render.Canvas
	camera render.Camera
	image  *ebiten.Image

	// 本地记录的请求状态，用于 +/- 和 [/] 计算下一条命令
	settings stream.Settings

	frame     protocol.DecodedFrame
	drawn     int
	received  int
	rate      float64
	rateStart time.Time
	lastError string
}

// NewViewer 创建查看器
func NewViewer(network *stream.NetworkClient, settings stream.Settings, log logr.Logger) *Viewer {
	return &Viewer{
		network:   network,
		log:       log.WithName("viewer"),
		canvas:    render.NewCanvas(ScreenWidth, ScreenHeight),
		camera:    render.DefaultCamera(),
		settings:  settings,
		rateStart: time.Now(),
	}
}

// Update 取最新帧并处理按键
func (v *Viewer) Update() error {
	select {
	case err := <-v.network.Err():
		v.lastError = err.Error()
	default:
	}

	if frame, ok := v.network.LatestFrame(); ok {
		v.frame = frame
		v.received++
	}
	if elapsed := time.Since(v.rateStart); elapsed >= time.Second {
		v.rate = float64(v.received) / elapsed.Seconds()
		v.received = 0
		v.rateStart = time.Now()
	}

	for _, cmd := range v.settings.Apply(v.pressedActions()) {
		if err := v.network.SendCommand(cmd); err != nil {
			v.log.V(logging.DEBUG).Info("发送命令失败", "kind", cmd.Kind.String(), "err", err.Error())
			continue
		}
		v.log.V(logging.VERBOSE).Info("发送命令", "kind", cmd.Kind.String(), "value", cmd.Value)
	}

	if v.input.JustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	return nil
}

func (v *Viewer) pressedActions() []stream.Action {
	var actions []stream.Action
	for key, action := range keyBindings {
		if v.input.JustPressed(key) {
			actions = append(actions, action)
		}
	}
	return actions
}

// Draw 绘制点云和状态栏
func (v *Viewer) Draw(screen *ebiten.Image) {
	v.canvas.Clear(0x10, 0x12, 0x18)
	v.drawn = v.canvas.DrawPoints(v.frame.Points, v.camera)
	if v.image == nil {
		v.image = ebiten.NewImage(ScreenWidth, ScreenHeight)
	}
	v.image.WritePixels(v.canvas.Pix)
	screen.DrawImage(v.image, nil)

	lines := []string{
		fmt.Sprintf("engine  %s", engine.ID(v.settings.Engine).String()),
		fmt.Sprintf("compute %.1f us", v.frame.LatencyUS),
		fmt.Sprintf("frames  %.1f /s (target %s)", v.rate, fpsLabel(v.settings.TargetFPS)),
		fmt.Sprintf("points  %d (drawn %d)", v.frame.Count(), v.drawn),
		"1-4 engine  +/- fps  [/] points  esc quit",
	}
	y := 16
	for _, line := range lines {
		drawText(screen, 12, y, line, color.RGBA{220, 230, 240, 255})
		y += 16
	}

	if v.lastError != "" {
		drawText(screen, 12, ScreenHeight-12, v.lastError, color.RGBA{255, 120, 120, 255})
	}
}

// Layout 固定画布大小
func (v *Viewer) Layout(outsideWidth, outsideHeight int) (int, int) {
	return ScreenWidth, ScreenHeight
}

func fpsLabel(fps uint32) string {
	if fps == 0 {
		return "uncapped"
	}
	return fmt.Sprintf("%d", fps)
}

func drawText(screen *ebiten.Image, x, y int, msg string, clr color.Color) {
	options := &text.DrawOptions{}
	options.GeoM.Translate(float64(x), float64(y))
	options.ColorScale.ScaleWithColor(clr)
	text.Draw(screen, msg, hudFont, options)
}

var keyBindings = map[ebiten.Key]stream.Action{
	ebiten.KeyDigit1:         stream.ActionEngineReference,
	ebiten.KeyDigit2:         stream.ActionEngineNativeA,
	ebiten.KeyDigit3:         stream.ActionEngineNativeB,
	ebiten.KeyDigit4:         stream.ActionEngineParallel,
	ebiten.KeyEqual:          stream.ActionFPSUp,
	ebiten.KeyNumpadAdd:      stream.ActionFPSUp,
	ebiten.KeyMinus:          stream.ActionFPSDown,
	ebiten.KeyNumpadSubtract: stream.ActionFPSDown,
	ebiten.KeyBracketLeft:    stream.ActionPointsHalve,
	ebiten.KeyBracketRight:   stream.ActionPointsDouble,
}

type keyTracker struct {
	prev map[ebiten.Key]bool
}

func (k *keyTracker) JustPressed(key ebiten.Key) bool {
	if k.prev == nil {
		k.prev = make(map[ebiten.Key]bool)
	}
	now := ebiten.IsKeyPressed(key)
	prev := k.prev[key]
	k.prev[key] = now
	return now && !prev
}
