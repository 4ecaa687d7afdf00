// Command batchdemo drives a vbatch Context through a few frames of
// churn: colored quads are added and removed every frame, the Artists
// compact their stores, and one draw-ready buffer per layout remains.
//
// Quads live directly in a device buffer. Outlines live in host memory
// and are mirrored to the device on Draw.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"image/color"
	"log"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/image/colornames"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/vbatch"
	"github.com/gogpu/vbatch/backend"
	"github.com/gogpu/vbatch/vbo"
)

// vertexStride is position vec2<f32> + color vec4<f32>.
const vertexStride = 24

var palette = []color.RGBA{
	colornames.Tomato,
	colornames.Gold,
	colornames.Mediumseagreen,
	colornames.Steelblue,
	colornames.Orchid,
	colornames.Slategray,
}

// drawable is one on-screen panel: a filled quad and its outline.
type drawable struct {
	fill    vbatch.Ticket
	outline vbatch.Ticket
}

func main() {
	var (
		backendName = flag.String("backend", "", "device backend (default: best available)")
		panels      = flag.Int("panels", 64, "panels created up front")
		frames      = flag.Int("frames", 8, "frames to simulate")
		churn       = flag.Int("churn", 16, "panels replaced per frame")
		seed        = flag.Uint64("seed", 1, "random seed")
		metrics     = flag.Bool("metrics", false, "print Prometheus metrics at exit")
		verbose     = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *verbose {
		vbatch.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	dev, err := openBackend(*backendName)
	if err != nil {
		log.Fatalf("Failed to open backend: %v", err)
	}
	defer dev.Close()
	adapter := dev.Adapter()

	ctx := vbatch.NewContext()
	quadSpec, lineSpec := ctx.NewSpec(), ctx.NewSpec()

	quadBuf, err := vbo.New(adapter, quadSpec, vertexStride,
		vbo.WithLabel("quads"), vbo.WithInitialCapacity(6*(*panels)))
	if err != nil {
		log.Fatalf("Failed to create quad buffer: %v", err)
	}
	defer quadBuf.Destroy()
	if _, err := ctx.Attach(quadSpec, vertexStride,
		vbatch.WithLabel("quads"), vbatch.WithStore(quadBuf)); err != nil {
		log.Fatalf("Failed to attach quads: %v", err)
	}

	lineBuf, err := vbo.New(adapter, lineSpec, vertexStride, vbo.WithLabel("outlines"))
	if err != nil {
		log.Fatalf("Failed to create outline buffer: %v", err)
	}
	defer lineBuf.Destroy()
	if _, err := ctx.Attach(lineSpec, vertexStride,
		vbatch.WithLabel("outlines"), vbatch.WithResync(vbo.Mirror(lineBuf))); err != nil {
		log.Fatalf("Failed to attach outlines: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(vbatch.NewCollector(ctx))

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	live := make([]drawable, 0, *panels)
	for i := 0; i < *panels; i++ {
		d, err := addPanel(ctx, quadSpec, lineSpec, rng)
		if err != nil {
			log.Fatalf("Failed to add panel: %v", err)
		}
		live = append(live, d)
	}

	p := message.NewPrinter(language.English)
	p.Printf("Backend: %s\n\n", dev.Name())

	for frame := 0; frame < *frames; frame++ {
		for i := 0; i < *churn && len(live) > 0; i++ {
			j := rng.IntN(len(live))
			if err := removePanel(ctx, live[j]); err != nil {
				log.Fatalf("Failed to remove panel: %v", err)
			}
			live[j] = live[len(live)-1]
			live = live[:len(live)-1]
		}
		for i := 0; i < *churn; i++ {
			d, err := addPanel(ctx, quadSpec, lineSpec, rng)
			if err != nil {
				log.Fatalf("Failed to add panel: %v", err)
			}
			live = append(live, d)
		}

		if err := ctx.Draw(); err != nil {
			log.Fatalf("Frame %d: draw: %v", frame, err)
		}
		printFrame(p, frame, ctx, quadBuf, lineBuf)
	}

	for _, a := range ctx.Artists() {
		if err := a.Validate(); err != nil {
			log.Fatalf("Validate: %v", err)
		}
	}

	if *metrics {
		if err := printMetrics(reg); err != nil {
			log.Fatalf("Failed to gather metrics: %v", err)
		}
	}
}

func openBackend(name string) (backend.DeviceBackend, error) {
	if name == "" {
		return backend.InitDefault()
	}
	b := backend.Get(name)
	if b == nil {
		return nil, fmt.Errorf("%w: %q (have %s)",
			backend.ErrBackendNotAvailable, name, strings.Join(backend.Available(), ", "))
	}
	if err := b.Init(); err != nil {
		return nil, err
	}
	return b, nil
}

func addPanel(ctx *vbatch.Context, quadSpec, lineSpec vbatch.SpecID, rng *rand.Rand) (drawable, error) {
	x, y := rng.Float32()*760, rng.Float32()*560
	w, h := 20+rng.Float32()*80, 20+rng.Float32()*80
	c := palette[rng.IntN(len(palette))]

	fill, err := ctx.Insert(quad(quadSpec, x, y, w, h, c))
	if err != nil {
		return drawable{}, err
	}
	outline, err := ctx.Insert(outline(lineSpec, x, y, w, h, colornames.White))
	if err != nil {
		_ = ctx.Remove(fill)
		return drawable{}, err
	}
	return drawable{fill: fill, outline: outline}, nil
}

func removePanel(ctx *vbatch.Context, d drawable) error {
	if err := ctx.Remove(d.fill); err != nil {
		return err
	}
	return ctx.Remove(d.outline)
}

// quad returns two triangles covering the rectangle.
func quad(spec vbatch.SpecID, x, y, w, h float32, c color.RGBA) *vbatch.VertexData {
	return vertices(spec, c,
		x, y, x+w, y, x+w, y+h,
		x, y, x+w, y+h, x, y+h,
	)
}

// outline returns a line list tracing the rectangle.
func outline(spec vbatch.SpecID, x, y, w, h float32, c color.RGBA) *vbatch.VertexData {
	return vertices(spec, c,
		x, y, x+w, y,
		x+w, y, x+w, y+h,
		x+w, y+h, x, y+h,
		x, y+h, x, y,
	)
}

func vertices(spec vbatch.SpecID, c color.RGBA, xy ...float32) *vbatch.VertexData {
	n := len(xy) / 2
	v := vbatch.NewVertexData(spec, vertexStride, n)
	rgba := [4]float32{
		float32(c.R) / 255, float32(c.G) / 255, float32(c.B) / 255, float32(c.A) / 255,
	}
	for i := 0; i < n; i++ {
		rec := v.Record(i, vertexStride)
		putFloats(rec, xy[2*i], xy[2*i+1], rgba[0], rgba[1], rgba[2], rgba[3])
	}
	return v
}

func putFloats(dst []byte, fs ...float32) {
	for i, f := range fs {
		binary.LittleEndian.PutUint32(dst[4*i:], math.Float32bits(f))
	}
}

func printFrame(p *message.Printer, frame int, ctx *vbatch.Context, quads, lines *vbo.Buffer) {
	p.Printf("Frame %d\n", frame)
	for _, a := range ctx.Artists() {
		s := a.Stats()
		p.Printf("  %-9s %5d owners %7d vertices %9d bytes  moved %d bytes\n",
			a.Label(), s.Owners, s.Records, s.Bytes, s.BytesMoved)
	}
	p.Printf("  device    quads %d/%d  outlines %d/%d vertices\n",
		quads.Count(), quads.Capacity(), lines.Count(), lines.Capacity())
}

func printMetrics(g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	sort.Slice(families, func(i, j int) bool { return families[i].GetName() < families[j].GetName() })

	fmt.Println()
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
			}
			value := m.GetGauge().GetValue()
			if m.GetCounter() != nil {
				value = m.GetCounter().GetValue()
			}
			fmt.Printf("%s{%s} %g\n", mf.GetName(), strings.Join(labels, ","), value)
		}
	}
	return nil
}
