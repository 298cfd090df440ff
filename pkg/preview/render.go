// Package preview renders a triangle mesh into a small deterministic PNG
// image. The renderer is a fixed-camera orthographic rasterizer: the same
// mesh always produces the same bytes, so previews are usable as stable
// batch artifacts and as labeling-oracle input.
package preview

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"github.com/Tianle-Jiang/LLM-for-CAD-Command-Sequence/pkg/kernel"
)

// DefaultSize is the default image width and height in pixels.
const DefaultSize = 512

// Options configures a render. Zero values select the defaults.
type Options struct {
	Width  int
	Height int
}

// camera basis for the fixed isometric view from (1,1,1) toward the
// origin, with world +Z as up.
var (
	camForward = unit(vec{-1, -1, -1})
	camRight   = unit(cross(camForward, vec{0, 0, 1}))
	camUp      = cross(camRight, camForward)
	lightDir   = unit(vec{0.4, 0.3, 0.85})
)

var baseColor = [3]float64{0.44, 0.56, 0.76}

// Render rasterizes the mesh into an RGBA image.
func Render(m *kernel.Mesh, opts Options) (*image.RGBA, error) {
	if m == nil || m.IsEmpty() {
		return nil, fmt.Errorf("preview: mesh is empty")
	}
	w := opts.Width
	if w <= 0 {
		w = DefaultSize
	}
	h := opts.Height
	if h <= 0 {
		h = DefaultSize
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}

	proj := projectVertices(m)
	fitToCanvas(proj, w, h)

	depth := make([]float64, w*h)
	for i := range depth {
		depth[i] = math.Inf(-1)
	}

	for t := 0; t < len(m.Indices); t += 3 {
		i0, i1, i2 := m.Indices[t], m.Indices[t+1], m.Indices[t+2]
		n := vec{
			float64(m.Normals[3*i0]),
			float64(m.Normals[3*i0+1]),
			float64(m.Normals[3*i0+2]),
		}
		shade := 0.25 + 0.75*math.Max(0, dot(unitOr(n, camUp), lightDir))
		c := color.RGBA{
			R: uint8(math.Min(baseColor[0]*shade, 1) * 255),
			G: uint8(math.Min(baseColor[1]*shade, 1) * 255),
			B: uint8(math.Min(baseColor[2]*shade, 1) * 255),
			A: 0xff,
		}
		fillTriangle(img, depth, proj[i0], proj[i1], proj[i2], c)
	}
	return img, nil
}

// WritePNG renders the mesh and writes it to path.
func WritePNG(m *kernel.Mesh, path string, opts Options) error {
	img, err := Render(m, opts)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("preview: %w", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("preview: encode %s: %w", path, err)
	}
	return nil
}

type vec struct{ x, y, z float64 }

// pvert is a projected vertex: screen x, y and view-space depth.
type pvert struct{ x, y, d float64 }

func projectVertices(m *kernel.Mesh) []pvert {
	out := make([]pvert, m.VertexCount())
	for i := range out {
		p := vec{
			float64(m.Vertices[3*i]),
			float64(m.Vertices[3*i+1]),
			float64(m.Vertices[3*i+2]),
		}
		out[i] = pvert{
			x: dot(p, camRight),
			y: dot(p, camUp),
			d: dot(p, camForward),
		}
	}
	return out
}

// fitToCanvas scales and centers the projected vertices so the model
// fills the canvas with a 10 percent margin. Y is flipped into image
// coordinates.
func fitToCanvas(proj []pvert, w, h int) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range proj {
		minX = math.Min(minX, p.x)
		maxX = math.Max(maxX, p.x)
		minY = math.Min(minY, p.y)
		maxY = math.Max(maxY, p.y)
	}
	spanX := maxX - minX
	spanY := maxY - minY
	span := math.Max(spanX, spanY)
	if span == 0 {
		span = 1
	}
	scale := 0.8 * math.Min(float64(w), float64(h)) / span
	cx, cy := (minX+maxX)/2, (minY+maxY)/2

	for i := range proj {
		proj[i].x = float64(w)/2 + (proj[i].x-cx)*scale
		proj[i].y = float64(h)/2 - (proj[i].y-cy)*scale
	}
}

// fillTriangle rasterizes one triangle with a depth buffer; the nearest
// surface wins each pixel.
func fillTriangle(img *image.RGBA, depth []float64, a, b, c pvert, col color.RGBA) {
	w := img.Rect.Dx()
	h := img.Rect.Dy()

	minX := clampInt(int(math.Floor(min3(a.x, b.x, c.x))), 0, w-1)
	maxX := clampInt(int(math.Ceil(max3(a.x, b.x, c.x))), 0, w-1)
	minY := clampInt(int(math.Floor(min3(a.y, b.y, c.y))), 0, h-1)
	maxY := clampInt(int(math.Ceil(max3(a.y, b.y, c.y))), 0, h-1)

	area := edge(a, b, c)
	if area == 0 {
		return
	}

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			p := pvert{x: float64(x) + 0.5, y: float64(y) + 0.5}
			w0 := edge(b, c, p) / area
			w1 := edge(c, a, p) / area
			w2 := edge(a, b, p) / area
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			d := w0*a.d + w1*b.d + w2*c.d
			idx := y*w + x
			if d <= depth[idx] {
				continue
			}
			depth[idx] = d
			img.SetRGBA(x, y, col)
		}
	}
}

func edge(a, b, p pvert) float64 {
	return (b.x-a.x)*(p.y-a.y) - (b.y-a.y)*(p.x-a.x)
}

func dot(a, b vec) float64 { return a.x*b.x + a.y*b.y + a.z*b.z }

func cross(a, b vec) vec {
	return vec{a.y*b.z - a.z*b.y, a.z*b.x - a.x*b.z, a.x*b.y - a.y*b.x}
}

func unit(a vec) vec {
	l := math.Sqrt(dot(a, a))
	return vec{a.x / l, a.y / l, a.z / l}
}

func unitOr(a, fallback vec) vec {
	l := math.Sqrt(dot(a, a))
	if l < 1e-12 {
		return fallback
	}
	return vec{a.x / l, a.y / l, a.z / l}
}

func min3(a, b, c float64) float64 { return math.Min(a, math.Min(b, c)) }
func max3(a, b, c float64) float64 { return math.Max(a, math.Max(b, c)) }

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
