package shader

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeadersFollowBackend(t *testing.T) {
	for _, src := range []string{GetCompositeFragmentShader(false), GetSamplingFragmentShader(false), GenerateVertexShader(false)} {
		assert.True(t, strings.HasPrefix(src, "#version 410 core"))
	}
	for _, src := range []string{GetCompositeFragmentShader(true), GetSamplingFragmentShader(true), GenerateVertexShader(true)} {
		assert.True(t, strings.HasPrefix(src, "#version 300 es"))
	}
	assert.Contains(t, GetSamplingFragmentShader(true), "precision highp int;")
}

func TestBlitVariants(t *testing.T) {
	assert.Contains(t, GetBlitFragmentShader(true, false), "1.0 - frag_uv.y")
	assert.NotContains(t, GetBlitFragmentShader(false, false), "1.0 - frag_uv.y")
	assert.Contains(t, GetBlitFragmentShader(true, true), "precision mediump float;")
}

func TestSamplingUniformsMatchLimits(t *testing.T) {
	src := GetSamplingFragmentShader(false)
	assert.Contains(t, src, "u_p0[32]")
	assert.Contains(t, src, "const int BINS = 512;")
	assert.Contains(t, src, "clamp(u_samples, 1, 64)")
}

func TestSamplingReadsExactTexels(t *testing.T) {
	for _, gles := range []bool{false, true} {
		src := GetSamplingFragmentShader(gles)
		assert.Contains(t, src, "texelFetch(u_image")
		assert.NotContains(t, src, "texture(u_image")
	}
}

func TestCompositeWritesTopRowFirst(t *testing.T) {
	src := GetCompositeFragmentShader(false)
	assert.Contains(t, src, "vec2 uv = frag_uv;")
	assert.NotContains(t, src, "1.0 - frag_uv.y")
}
