package shader

// ────────────────────────────────── Desktop GL ──────────────────────────────────

const vertexShaderSourceGL = `#version 410 core
layout (location = 0) in vec2 in_vert;
out vec2 frag_uv;
void main() {
    frag_uv = in_vert * 0.5 + 0.5;
    gl_Position = vec4(in_vert, 0.0, 1.0);
}
`

const blitFragmentShaderSourceFlipGL = `#version 410 core
in vec2 frag_uv;
out vec4 fragColor;
uniform sampler2D u_texture;
void main() { fragColor = texture(u_texture, vec2(frag_uv.x, 1.0 - frag_uv.y)); }
`

const blitFragmentShaderSourceGL = `#version 410 core
in vec2 frag_uv;
out vec4 fragColor;
uniform sampler2D u_texture;
void main() { fragColor = texture(u_texture, frag_uv); }
`

// ──────────────────────────────────── GLES ──────────────────────────────────────

const vertexShaderSourceGLES = `#version 300 es
layout (location = 0) in vec2 in_vert;
out vec2 frag_uv;
void main() {
    frag_uv = in_vert * 0.5 + 0.5;
    gl_Position = vec4(in_vert, 0.0, 1.0);
}
`

const blitFragmentShaderSourceFlipGLES = `#version 300 es
precision mediump float;
in vec2 frag_uv;
out vec4 fragColor;
uniform sampler2D u_texture;
void main() { fragColor = texture(u_texture, vec2(frag_uv.x, 1.0 - frag_uv.y)); }
`

const blitFragmentShaderSourceGLES = `#version 300 es
precision mediump float;
in vec2 frag_uv;
out vec4 fragColor;
uniform sampler2D u_texture;
void main() { fragColor = texture(u_texture, frag_uv); }
`

const headerGL = "#version 410 core\n"

const headerGLES = `#version 300 es
precision highp float;
precision highp int;
`

// ─────────────────────────────────── Compositor ─────────────────────────────────

// The composite pass writes image rows top-first: uv.y = 0 is the top of the
// picture and lands in framebuffer row 0. Each input window maps output uv into the input texture; anything
// outside [0,1] is letterbox black.
const compositeBody = `
in vec2 frag_uv;
out vec4 fragColor;

uniform sampler2D u_texA;
uniform sampler2D u_texB;
uniform vec4  u_windowA;   // offset.xy, scale.zw
uniform vec4  u_windowB;
uniform int   u_flipA;
uniform int   u_flipB;
uniform float u_mix;
uniform int   u_blend;      // 0 normal, 1 add, 2 multiply, 3 screen
uniform int   u_transition; // 0 crossfade, 1 wipe, 2 luma
uniform float u_softness;
uniform float u_angle;
uniform int   u_lumaInvert;

vec4 sampleInput(sampler2D tex, vec4 win, int flip, vec2 uv) {
    vec2 st = win.xy + uv * win.zw;
    if (st.x < 0.0 || st.y < 0.0 || st.x > 1.0 || st.y > 1.0) {
        return vec4(0.0, 0.0, 0.0, 1.0);
    }
    if (flip == 1) {
        st.y = 1.0 - st.y;
    }
    return texture(tex, st);
}

float edge(float soft) {
    return u_mix * (1.0 + 2.0 * soft) - soft;
}

float wipeFactor(vec2 uv, float soft) {
    vec2 d = vec2(cos(u_angle), sin(u_angle));
    float span = abs(d.x) * 0.5 + abs(d.y) * 0.5;
    float p = dot(uv - 0.5, d) / (2.0 * span) + 0.5;
    float e = edge(soft);
    return 1.0 - smoothstep(e - soft, e + soft, p);
}

float lumaFactor(vec3 b, float soft) {
    float l = dot(b, vec3(0.299, 0.587, 0.114));
    if (u_lumaInvert == 1) {
        l = 1.0 - l;
    }
    float e = edge(soft);
    return smoothstep(1.0 - e - soft, 1.0 - e + soft, l);
}

vec3 blendMode(vec3 a, vec3 b) {
    if (u_blend == 1) return clamp(a + b, 0.0, 1.0);
    if (u_blend == 2) return a * b;
    if (u_blend == 3) return 1.0 - (1.0 - a) * (1.0 - b);
    return b;
}

void main() {
    vec2 uv = frag_uv;
    vec4 a = sampleInput(u_texA, u_windowA, u_flipA, uv);
    vec4 b = sampleInput(u_texB, u_windowB, u_flipB, uv);

    float soft = max(u_softness, 1e-4);
    float s = clamp(u_mix, 0.0, 1.0);
    if (u_transition == 1) {
        s = wipeFactor(uv, soft);
    } else if (u_transition == 2) {
        s = lumaFactor(b.rgb, soft);
    }

    vec3 color = mix(a.rgb, b.rgb, s);
    if (u_blend != 0) {
        float w = 1.0 - abs(2.0 * s - 1.0);
        color = mix(color, blendMode(a.rgb, b.rgb), w);
    }
    fragColor = vec4(color, 1.0);
}
`

// ──────────────────────────────────── Sampling ──────────────────────────────────

// One fragment per region: the viewport is count x 1 and the column index
// selects the region. u_p0[i].z marks an oriented quad and u_p0[i].w marks a
// region that can be sampled at all; invalid regions come out black.
const samplingBody = `
out vec4 fragColor;

uniform sampler2D u_image;
uniform vec2  u_canvasSize;
uniform int   u_count;
uniform int   u_statistic;  // 0 average, 1 mode, 2 max luma
uniform int   u_samples;
uniform vec4  u_rect[32];   // x, y, w, h normalized
uniform vec4  u_p0[32];     // p0.xy pixels, z oriented, w valid
uniform vec4  u_uv[32];     // u.xy, v.xy pixels

const int BINS = 512;
float count[BINS];
float sumR[BINS];
float sumG[BINS];
float sumB[BINS];

vec3  avgSum;
float avgN;
vec3  best;
float bestLuma;

float luma709(vec3 c) {
    return dot(c, vec3(0.2126, 0.7152, 0.0722));
}

// Nearest texel under a normalized position, clamped to the edge.
vec3 texel(vec2 uv) {
    ivec2 size = textureSize(u_image, 0);
    ivec2 p = clamp(ivec2(floor(uv * vec2(size))), ivec2(0), size - 1);
    return texelFetch(u_image, p, 0).rgb;
}

int binIndex(vec3 c) {
    ivec3 q = ivec3(floor(clamp(c, 0.0, 1.0) * 7.999));
    return q.r * 64 + q.g * 8 + q.b;
}

void reset() {
    avgSum = vec3(0.0);
    avgN = 0.0;
    best = vec3(0.0);
    bestLuma = -1.0;
    if (u_statistic == 1) {
        for (int i = 0; i < BINS; ++i) {
            count[i] = 0.0; sumR[i] = 0.0; sumG[i] = 0.0; sumB[i] = 0.0;
        }
    }
}

void accumulate(vec3 c) {
    if (u_statistic == 1) {
        int k = binIndex(c);
        count[k] += 1.0;
        sumR[k] += c.r;
        sumG[k] += c.g;
        sumB[k] += c.b;
    } else if (u_statistic == 2) {
        float l = luma709(c);
        if (l > bestLuma) {
            bestLuma = l;
            best = c;
        }
    } else {
        avgSum += c;
        avgN += 1.0;
    }
}

vec3 resolve() {
    if (u_statistic == 1) {
        int win = 0;
        float winCount = -1.0;
        float winLuma = -1.0;
        for (int i = 0; i < BINS; ++i) {
            float n = count[i];
            if (n <= 0.0) continue;
            float l = luma709(vec3(sumR[i], sumG[i], sumB[i])) / n;
            if (n > winCount || (n == winCount && l > winLuma)) {
                win = i; winCount = n; winLuma = l;
            }
        }
        float d = max(winCount, 1.0);
        return vec3(sumR[win], sumG[win], sumB[win]) / d;
    }
    if (u_statistic == 2) {
        return best;
    }
    return avgN > 0.0 ? avgSum / avgN : vec3(0.0);
}

void walkOriented(int idx, int n) {
    vec2 p0 = u_p0[idx].xy / u_canvasSize;
    vec2 U = u_uv[idx].xy / u_canvasSize;
    vec2 V = u_uv[idx].zw / u_canvasSize;
    float fn = float(n);
    for (int i = 0; i < n; ++i) {
        float su = (float(i) + 0.5) / fn;
        for (int j = 0; j < n; ++j) {
            float sv = (float(j) + 0.5) / fn;
            accumulate(texel(p0 + su * U + sv * V));
        }
    }
}

void walkAxis(int idx, int n) {
    vec4 r = u_rect[idx];
    float stride = 1.0 / float(n);
    for (int i = 0; i <= n; ++i) {
        float x = r.x + float(i) * stride * r.z;
        for (int j = 0; j <= n; ++j) {
            float y = r.y + float(j) * stride * r.w;
            accumulate(texel(vec2(x, y)));
        }
    }
}

void main() {
    int idx = int(gl_FragCoord.x);
    if (idx < 0 || idx >= u_count || u_p0[idx].w < 0.5) {
        fragColor = vec4(0.0, 0.0, 0.0, 1.0);
        return;
    }
    int n = clamp(u_samples, 1, 64);
    reset();
    if (u_p0[idx].z > 0.5) {
        walkOriented(idx, n);
    } else {
        walkAxis(idx, n);
    }
    fragColor = vec4(resolve(), 1.0);
}
`

// ─────────────────────────────────── Procedural ─────────────────────────────────

// DefaultProcedural is the fragment a procedural source runs until it is
// given another. User fragments are WebGL2 sources with the same two
// uniforms and are translated per backend before compiling.
const DefaultProcedural = `#version 300 es
precision highp float;
out vec4 fragColor;
uniform vec2 u_resolution;
uniform float u_time;
void main() {
  vec2 uv = gl_FragCoord.xy / u_resolution;
  float t = u_time * 0.5;
  vec3 col = 0.5 + 0.5 * sin(vec3(t) + vec3(uv, uv.x + uv.y) * 6.28318);
  fragColor = vec4(col, 1.0);
}
`

// ────────────────────────────────── Public API ─────────────────────────────────

func header(isGLES bool) string {
	if isGLES {
		return headerGLES
	}
	return headerGL
}

func GenerateVertexShader(isGLES bool) string {
	if isGLES {
		return vertexShaderSourceGLES
	}
	return vertexShaderSourceGL
}

func GetBlitFragmentShader(flip, isGLES bool) string {
	if isGLES {
		if flip {
			return blitFragmentShaderSourceFlipGLES
		}
		return blitFragmentShaderSourceGLES
	}
	if flip {
		return blitFragmentShaderSourceFlipGL
	}
	return blitFragmentShaderSourceGL
}

// GetCompositeFragmentShader returns the two-input blend and transition pass.
func GetCompositeFragmentShader(isGLES bool) string {
	return header(isGLES) + compositeBody
}

// GetSamplingFragmentShader returns the per-region statistics pass.
func GetSamplingFragmentShader(isGLES bool) string {
	return header(isGLES) + samplingBody
}
