package translator

import (
	"context"
	"fmt"
	"sync"

	gst "github.com/richinsley/goshadertranslator"
)

var (
	once       sync.Once
	translator *gst.ShaderTranslator
	initErr    error
)

// GetTranslator lazily creates the process-wide translator.
func GetTranslator() (*gst.ShaderTranslator, error) {
	once.Do(func() {
		translator, initErr = gst.NewShaderTranslator(context.Background())
	})
	return translator, initErr
}

// Fragment is a translated fragment shader and the backend names of its
// uniforms, keyed by the name used in the WebGL2 source.
type Fragment struct {
	Code     string
	Uniforms map[string]string
}

// Location returns the name to look up for a uniform, or "" when the
// translated shader dropped it.
func (f *Fragment) Location(name string) string {
	return f.Uniforms[name]
}

// TranslateFragment converts a WebGL2 fragment shader for desktop GL 4.1 or
// GLES 3.
func TranslateFragment(src string, isGLES bool) (*Fragment, error) {
	t, err := GetTranslator()
	if err != nil {
		return nil, fmt.Errorf("shader translator unavailable: %w", err)
	}
	outputFormat := gst.OutputFormatGLSL410
	if isGLES {
		outputFormat = gst.OutputFormatESSL
	}
	fs, err := t.TranslateShader(src, "fragment", gst.ShaderSpecWebGL2, outputFormat)
	if err != nil {
		return nil, fmt.Errorf("fragment shader translation failed: %w", err)
	}
	out := &Fragment{Code: fs.Code, Uniforms: make(map[string]string, len(fs.Variables))}
	for name, v := range fs.Variables {
		out.Uniforms[name] = v.MappedName
	}
	return out, nil
}
