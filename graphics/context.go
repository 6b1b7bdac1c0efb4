package graphics

// Context defines the interface for an OpenGL context: a GLFW window or a
// headless EGL surface.
type Context interface {
	MakeCurrent()
	Shutdown()
	ShouldClose() bool
	// RequestClose asks the render loop to stop after the current frame. It
	// may be called from any goroutine.
	RequestClose()
	EndFrame()
	GetFramebufferSize() (int, int)
	// Time is seconds since the context was created.
	Time() float64
	IsGLES() bool
}
