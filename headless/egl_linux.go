//go:build linux

package headless

import (
	"fmt"
	"log"
	"sync/atomic"
	"time"
)

/*
#cgo LDFLAGS: -lEGL -lGLESv2
#include <EGL/egl.h>
#include <EGL/eglext.h>

static PFNEGLQUERYDEVICESEXTPROC query_devices_fn = NULL;
static PFNEGLGETPLATFORMDISPLAYEXTPROC platform_display_fn = NULL;

static void load_device_extensions() {
    query_devices_fn = (PFNEGLQUERYDEVICESEXTPROC) eglGetProcAddress("eglQueryDevicesEXT");
    platform_display_fn = (PFNEGLGETPLATFORMDISPLAYEXTPROC) eglGetProcAddress("eglGetPlatformDisplayEXT");
}

static EGLBoolean query_devices(EGLint max, EGLDeviceEXT *devices, EGLint *count) {
    return query_devices_fn ? query_devices_fn(max, devices, count) : EGL_FALSE;
}

static EGLDisplay device_display(EGLDeviceEXT device) {
    return platform_display_fn ? platform_display_fn(EGL_PLATFORM_DEVICE_EXT, device, NULL) : EGL_NO_DISPLAY;
}
*/
import "C"

// AnyDevice lets NewHeadlessDevice pick the first EGL device that yields a
// display.
const AnyDevice = -1

// Headless is a pbuffer-backed GLES 3 context. Everything lightv draws goes
// to offscreen targets first, so the pbuffer only receives the final copy
// and stays at the output size.
type Headless struct {
	display C.EGLDisplay
	context C.EGLContext
	surface C.EGLSurface
	width   int
	height  int
	start   time.Time
	closing atomic.Bool
}

// openDisplay returns the display of the requested device, or of the first
// usable one for AnyDevice. Without EGL_EXT_device_query it falls back to
// the default display, which needs a running display server on most
// drivers.
func openDisplay(device int) (C.EGLDisplay, error) {
	C.load_device_extensions()

	var count C.EGLint
	if C.query_devices(0, nil, &count) == C.EGL_FALSE || count == 0 {
		log.Println("Headless: no EGL device enumeration, using the default display")
		d := C.eglGetDisplay(C.EGLNativeDisplayType(C.EGL_DEFAULT_DISPLAY))
		if d == C.EGLDisplay(C.EGL_NO_DISPLAY) {
			return d, fmt.Errorf("eglGetDisplay(EGL_DEFAULT_DISPLAY) failed")
		}
		return d, nil
	}

	devices := make([]C.EGLDeviceEXT, count)
	if C.query_devices(count, &devices[0], &count) == C.EGL_FALSE {
		return C.EGLDisplay(C.EGL_NO_DISPLAY), fmt.Errorf("eglQueryDevicesEXT failed")
	}
	log.Printf("Headless: %d EGL devices", count)

	if device != AnyDevice {
		if device < 0 || device >= int(count) {
			return C.EGLDisplay(C.EGL_NO_DISPLAY), fmt.Errorf("EGL device %d out of range (have %d)", device, count)
		}
		d := C.device_display(devices[device])
		if d == C.EGLDisplay(C.EGL_NO_DISPLAY) {
			return d, fmt.Errorf("EGL device %d has no display", device)
		}
		return d, nil
	}
	for i := range devices {
		if d := C.device_display(devices[i]); d != C.EGLDisplay(C.EGL_NO_DISPLAY) {
			log.Printf("Headless: using EGL device %d", i)
			return d, nil
		}
	}
	return C.EGLDisplay(C.EGL_NO_DISPLAY), fmt.Errorf("no EGL device yields a display")
}

func NewHeadless(width, height int) (*Headless, error) {
	return NewHeadlessDevice(width, height, AnyDevice)
}

// NewHeadlessDevice creates the context on one EGL device, counted in
// eglQueryDevicesEXT order.
func NewHeadlessDevice(width, height, device int) (*Headless, error) {
	h := &Headless{
		width:   max(width, 1),
		height:  max(height, 1),
		start:   time.Now(),
		context: C.EGLContext(C.EGL_NO_CONTEXT),
		surface: C.EGLSurface(C.EGL_NO_SURFACE),
	}

	var err error
	if h.display, err = openDisplay(device); err != nil {
		return nil, fmt.Errorf("failed to get EGL display: %w", err)
	}
	var major, minor C.EGLint
	if C.eglInitialize(h.display, &major, &minor) == C.EGL_FALSE {
		return nil, fmt.Errorf("failed to initialize EGL")
	}

	if err := h.createContext(); err != nil {
		h.Shutdown()
		return nil, err
	}
	log.Printf("Headless: EGL %d.%d, %dx%d pbuffer", major, minor, h.width, h.height)
	return h, nil
}

func (h *Headless) createContext() error {
	attribs := []C.EGLint{
		C.EGL_SURFACE_TYPE, C.EGL_PBUFFER_BIT,
		C.EGL_RED_SIZE, 8,
		C.EGL_GREEN_SIZE, 8,
		C.EGL_BLUE_SIZE, 8,
		C.EGL_ALPHA_SIZE, 8,
		C.EGL_RENDERABLE_TYPE, C.EGL_OPENGL_ES3_BIT,
		C.EGL_NONE,
	}
	var config C.EGLConfig
	var n C.EGLint
	if C.eglChooseConfig(h.display, &attribs[0], &config, 1, &n) == C.EGL_FALSE || n == 0 {
		return fmt.Errorf("no RGBA8 GLES 3 pbuffer config")
	}

	surface := []C.EGLint{C.EGL_WIDTH, C.EGLint(h.width), C.EGL_HEIGHT, C.EGLint(h.height), C.EGL_NONE}
	h.surface = C.eglCreatePbufferSurface(h.display, config, &surface[0])
	if h.surface == C.EGLSurface(C.EGL_NO_SURFACE) {
		return fmt.Errorf("failed to create %dx%d pbuffer", h.width, h.height)
	}

	version := []C.EGLint{C.EGL_CONTEXT_CLIENT_VERSION, 3, C.EGL_NONE}
	h.context = C.eglCreateContext(h.display, config, C.EGLContext(C.EGL_NO_CONTEXT), &version[0])
	if h.context == C.EGLContext(C.EGL_NO_CONTEXT) {
		return fmt.Errorf("failed to create GLES 3 context")
	}
	if C.eglMakeCurrent(h.display, h.surface, h.surface, h.context) == C.EGL_FALSE {
		return fmt.Errorf("failed to make EGL context current")
	}
	return nil
}

func (h *Headless) MakeCurrent() {
	C.eglMakeCurrent(h.display, h.surface, h.surface, h.context)
}

// RequestClose makes ShouldClose report true. Safe from any goroutine.
func (h *Headless) RequestClose() { h.closing.Store(true) }

func (h *Headless) ShouldClose() bool { return h.closing.Load() }

func (h *Headless) EndFrame() { C.eglSwapBuffers(h.display, h.surface) }

func (h *Headless) GetFramebufferSize() (int, int) { return h.width, h.height }

func (h *Headless) Time() float64 { return time.Since(h.start).Seconds() }

func (h *Headless) IsGLES() bool { return true }

func (h *Headless) Shutdown() {
	if h.display == C.EGLDisplay(C.EGL_NO_DISPLAY) {
		return
	}
	C.eglMakeCurrent(h.display, C.EGLSurface(C.EGL_NO_SURFACE), C.EGLSurface(C.EGL_NO_SURFACE), C.EGLContext(C.EGL_NO_CONTEXT))
	if h.context != C.EGLContext(C.EGL_NO_CONTEXT) {
		C.eglDestroyContext(h.display, h.context)
	}
	if h.surface != C.EGLSurface(C.EGL_NO_SURFACE) {
		C.eglDestroySurface(h.display, h.surface)
	}
	C.eglTerminate(h.display)
	h.display = C.EGLDisplay(C.EGL_NO_DISPLAY)
}
