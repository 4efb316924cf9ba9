package player

import rl "github.com/gen2brain/raylib-go/raylib"

// handleInput processes keyboard and mouse input.
func (p *Player) handleInput() {
	p.handleResize()

	if rl.IsKeyPressed(rl.KeyF11) {
		rl.ToggleFullscreen()
	}
	if rl.IsKeyPressed(rl.KeySpace) {
		p.paused = !p.paused
	}

	p.handleCameraInput()

	// Mouse in field texels. The camera works in display rows, which run
	// bottom-up through the field when the display is flipped.
	mouse := rl.GetMousePosition()
	fx, fy := p.camera.ScreenToField(mouse.X, mouse.Y)
	if p.cfg.Effect.FlipY {
		fy = p.camera.FieldH - fy
	}
	p.mouseX, p.mouseY = float64(fx), float64(fy)
}

// handleCameraInput processes pan and zoom controls.
func (p *Player) handleCameraInput() {
	// Pan speed in screen pixels
	const panSpeed = float32(8.0)

	if rl.IsKeyDown(rl.KeyRight) {
		p.camera.Pan(panSpeed, 0)
	}
	if rl.IsKeyDown(rl.KeyLeft) {
		p.camera.Pan(-panSpeed, 0)
	}
	if rl.IsKeyDown(rl.KeyDown) {
		p.camera.Pan(0, panSpeed)
	}
	if rl.IsKeyDown(rl.KeyUp) {
		p.camera.Pan(0, -panSpeed)
	}

	if rl.IsMouseButtonDown(rl.MouseButtonRight) {
		delta := rl.GetMouseDelta()
		p.camera.Pan(-delta.X, -delta.Y)
	}

	if wheel := rl.GetMouseWheelMove(); wheel != 0 {
		p.camera.ZoomBy(1 + wheel*0.1)
	}
	if rl.IsKeyPressed(rl.KeyEqual) || rl.IsKeyPressed(rl.KeyKpAdd) {
		p.camera.ZoomBy(1.25)
	}
	if rl.IsKeyPressed(rl.KeyMinus) || rl.IsKeyPressed(rl.KeyKpSubtract) {
		p.camera.ZoomBy(0.8)
	}

	if rl.IsKeyPressed(rl.KeyHome) {
		p.camera.Reset()
	}
}

// handleResize propagates window size changes to the display and camera
// and, when the field follows the screen, to the pipeline.
func (p *Player) handleResize() {
	if !rl.IsWindowResized() {
		return
	}
	w := float32(rl.GetScreenWidth())
	h := float32(rl.GetScreenHeight())
	if w == p.screenW && h == p.screenH {
		return
	}
	p.screenW = w
	p.screenH = h

	p.display.Resize(w, h)
	p.camera.Resize(w, h)

	if p.cfg.Field.Width != 0 || p.cfg.Field.Height != 0 {
		return
	}
	if err := p.pipe.Resize(int(w), int(h)); err != nil {
		p.logger.Error("resize failed, keeping previous extent", "width", int(w), "height", int(h), "error", err)
		return
	}
	p.camera.ResizeField(w, h)
	p.logger.Info("field resized", "width", int(w), "height", int(h))
}
