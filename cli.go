package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"mockup-render/internal/batch"
	"mockup-render/internal/config"
	"mockup-render/internal/editor"
	mimage "mockup-render/internal/image"
	"mockup-render/internal/render"
	"mockup-render/internal/report"
	"mockup-render/internal/version"
	"mockup-render/pkg/geometry"
)

type command struct {
	name string
	help string
	run  func(args []string) error
}

var commands = []command{
	{"init-config", "Create a config template (JSON, or TOML by extension)", cmdInitConfig},
	{"preview", "Render a single design for preview", cmdPreview},
	{"render", "Render a batch of designs with a config", cmdRender},
	{"preview-simple", "Preview using pixel params (no config)", cmdPreviewSimple},
	{"render-simple", "Batch render using pixel params (no config)", cmdRenderSimple},
	{"version", "Print version information", cmdVersion},
}

// run dispatches to a subcommand and returns the process exit code.
func run(args []string) int {
	if len(args) == 0 {
		usage()
		return 2
	}
	name := args[0]
	if name == "-h" || name == "--help" || name == "help" {
		usage()
		return 0
	}
	for _, c := range commands {
		if c.name != name {
			continue
		}
		if err := c.run(args[1:]); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return 0
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 2
		}
		return 0
	}
	fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", name)
	usage()
	return 2
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: mockup-render <command> [flags]")
	fmt.Fprintln(os.Stderr, "\nCommands:")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-16s %s\n", c.name, c.help)
	}
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func cmdInitConfig(args []string) error {
	fs := flag.NewFlagSet("init-config", flag.ContinueOnError)
	mode := fs.String("mode", "rect", "Placement mode: rect or perspective")
	output := fs.String("output", "mockup_config.json", "Path to write the config (.json or .toml)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	m, err := render.ParseMode(*mode)
	if err != nil {
		return err
	}
	if err := config.Save(*output, config.Template(m)); err != nil {
		return err
	}
	fmt.Printf("Wrote config template to %s\n", *output)
	return nil
}

func cmdPreview(args []string) error {
	fs := flag.NewFlagSet("preview", flag.ContinueOnError)
	mockup := fs.String("mockup", "", "Path to the mockup image (required)")
	design := fs.String("design", "", "Path to the design image (required)")
	cfgPath := fs.String("config", "", "Config file path (required)")
	output := fs.String("output", "preview.png", "Where to save the preview")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "mockup", "design", "config"); err != nil {
		return err
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	img, err := render.RenderFile(*mockup, *design, cfg)
	if err != nil {
		return err
	}
	if err := mimage.Save(img, *output); err != nil {
		return err
	}
	fmt.Printf("Saved preview to %s\n", *output)
	return nil
}

func cmdRender(args []string) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	mockup := fs.String("mockup", "", "Path to the mockup image (required)")
	cfgPath := fs.String("config", "", "Config file path (required)")
	var bf batchFlags
	bf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "mockup", "config"); err != nil {
		return err
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	bg, err := mimage.Load(*mockup)
	if err != nil {
		return fmt.Errorf("failed to load mockup: %w", err)
	}
	return bf.run(fs.Args(), func(design *image.NRGBA) (*image.NRGBA, error) {
		return render.Render(bg, design, cfg)
	})
}

// pixelFlags are the placement flags of the -simple commands.
type pixelFlags struct {
	anchor    string
	x, y      int
	w, h      int
	rotation  float64
	aspect    string
	opacity   float64
	blend     string
	transform string
}

func (p *pixelFlags) register(fs *flag.FlagSet, withTransform bool) {
	fs.StringVar(&p.anchor, "anchor", "center", "What --x/--y refer to: center or topleft")
	fs.IntVar(&p.x, "x", 0, "X in mockup pixels (centre or top-left depending on --anchor)")
	fs.IntVar(&p.y, "y", 0, "Y in mockup pixels (centre or top-left depending on --anchor)")
	fs.IntVar(&p.w, "w", 0, "Target width in pixels")
	fs.IntVar(&p.h, "h", 0, "Target height in pixels")
	fs.Float64Var(&p.rotation, "rotation", 0, "Rotation in degrees, counter-clockwise")
	fs.StringVar(&p.aspect, "aspect", "contain", "Aspect policy: contain, cover or stretch")
	fs.Float64Var(&p.opacity, "opacity", 1, "Opacity 0..1")
	fs.StringVar(&p.blend, "blend", "normal", "Blend mode: "+strings.Join(mimage.BlendModeNames(), ", "))
	if withTransform {
		fs.StringVar(&p.transform, "transform", "", "Editor item transform a,b,c,d,tx,ty; replaces --x/--y/--w/--h/--rotation")
	}
}

func (p *pixelFlags) params(fs *flag.FlagSet) (render.PixelParams, error) {
	var params render.PixelParams
	if p.transform == "" {
		if err := required(fs, "x", "y", "w", "h"); err != nil {
			return params, err
		}
	}
	anchor, err := render.ParseAnchor(p.anchor)
	if err != nil {
		return params, err
	}
	aspect, err := mimage.ParseFitMode(p.aspect)
	if err != nil {
		return params, err
	}
	params = render.PixelParams{
		Placement: render.PixelPlacement{
			X: p.x, Y: p.y, Width: p.w, Height: p.h,
			Rotation: p.rotation,
			Anchor:   anchor,
		},
		Aspect:  aspect,
		Opacity: p.opacity,
		Blend:   parseBlend(p.blend),
	}
	return params, nil
}

// applyTransform replaces the placement with the one an editor transform
// describes for a design of the given size.
func (p *pixelFlags) applyTransform(params *render.PixelParams, size image.Point) error {
	if p.transform == "" {
		return nil
	}
	m, err := parseAffine(p.transform)
	if err != nil {
		return err
	}
	placement, err := editor.FromAffine(m).ToPixels(size)
	if err != nil {
		return err
	}
	params.Placement = placement
	return nil
}

func parseAffine(s string) (geometry.AffineTransform, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 6 {
		return geometry.AffineTransform{}, fmt.Errorf("transform needs 6 comma-separated numbers, got %d", len(parts))
	}
	var v [6]float64
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return geometry.AffineTransform{}, fmt.Errorf("bad transform value %q: %w", part, err)
		}
		v[i] = f
	}
	return geometry.AffineTransform{A: v[0], B: v[1], C: v[2], D: v[3], TX: v[4], TY: v[5]}, nil
}

func parseBlend(name string) mimage.BlendMode {
	mode, err := mimage.ParseBlendMode(name)
	if err != nil {
		log.Printf("Warning: %v, using normal", err)
	}
	return mode
}

func cmdPreviewSimple(args []string) error {
	fs := flag.NewFlagSet("preview-simple", flag.ContinueOnError)
	mockup := fs.String("mockup", "", "Path to the mockup image (required)")
	design := fs.String("design", "", "Path to the design image (required)")
	output := fs.String("output", "preview.png", "Where to save the preview")
	verbose := fs.Bool("verbose", false, "Print the resolved placement")
	var pf pixelFlags
	pf.register(fs, true)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "mockup", "design"); err != nil {
		return err
	}
	params, err := pf.params(fs)
	if err != nil {
		return err
	}

	bg, err := mimage.Load(*mockup)
	if err != nil {
		return fmt.Errorf("failed to load mockup: %w", err)
	}
	overlay, err := mimage.Load(*design)
	if err != nil {
		return fmt.Errorf("failed to load design: %w", err)
	}
	if err := pf.applyTransform(&params, overlay.Bounds().Size()); err != nil {
		return err
	}
	if *verbose {
		if geom, err := params.Placement.Resolve(); err == nil {
			fmt.Printf("Placement: %v\n", geom)
		}
	}

	img, err := render.RenderPixels(bg, overlay, params)
	if err != nil {
		return err
	}
	if err := mimage.Save(img, *output); err != nil {
		return err
	}
	fmt.Printf("Saved preview to %s\n", *output)
	return nil
}

func cmdRenderSimple(args []string) error {
	fs := flag.NewFlagSet("render-simple", flag.ContinueOnError)
	mockup := fs.String("mockup", "", "Path to the mockup image (required)")
	var pf pixelFlags
	pf.register(fs, false)
	var bf batchFlags
	bf.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "mockup"); err != nil {
		return err
	}
	params, err := pf.params(fs)
	if err != nil {
		return err
	}
	if err := params.Validate(); err != nil {
		return err
	}

	bg, err := mimage.Load(*mockup)
	if err != nil {
		return fmt.Errorf("failed to load mockup: %w", err)
	}
	return bf.run(fs.Args(), func(design *image.NRGBA) (*image.NRGBA, error) {
		return render.RenderPixels(bg, design, params)
	})
}

func cmdVersion(args []string) error {
	fmt.Println(version.String())
	fmt.Printf("Perspective backend: %s\n", mimage.WarpBackend)
	return nil
}

// batchFlags are shared by render and render-simple.
type batchFlags struct {
	designs        stringList
	items          string
	cacheDir       string
	outDir         string
	pattern        string
	verbose        bool
	uploadImgBB    bool
	imgbbKey       string
	reportTemplate string
	reportOut      string
}

func (b *batchFlags) register(fs *flag.FlagSet) {
	fs.Var(&b.designs, "designs", "Glob pattern for design images, e.g. 'designs/*.png' (repeatable; extra arguments are patterns too)")
	fs.StringVar(&b.items, "items", "", "JSON file listing remote designs instead of --designs")
	fs.StringVar(&b.cacheDir, "cache-dir", "designs_temp", "Where remote designs are downloaded")
	fs.StringVar(&b.outDir, "out-dir", "outputs", "Output directory")
	fs.StringVar(&b.pattern, "pattern", batch.DefaultPattern, "Filename pattern. Vars: {name}, {index}, {ext}")
	fs.BoolVar(&b.verbose, "verbose", false, "Print every saved file")
	fs.BoolVar(&b.uploadImgBB, "upload-imgbb", false, "Upload results to imgbb")
	fs.StringVar(&b.imgbbKey, "imgbb-key", "", "ImgBB API key (or set IMGBB_API_KEY)")
	fs.StringVar(&b.reportTemplate, "report-template", "", "xlsx template for the product report")
	fs.StringVar(&b.reportOut, "report-out", "", "xlsx report path (default <out-dir>/TEMU_results.xlsx when a template is given)")
}

func (b *batchFlags) jobs(extra []string) ([]batch.Job, *batch.Fetcher, error) {
	if b.items != "" {
		items, err := batch.LoadItems(b.items)
		if err != nil {
			return nil, nil, err
		}
		if len(items) == 0 {
			return nil, nil, fmt.Errorf("no items found in %s", b.items)
		}
		return batch.ItemJobs(items), batch.NewFetcher(b.cacheDirFor()), nil
	}

	patterns := append(append([]string{}, b.designs...), extra...)
	if len(patterns) == 0 {
		return nil, nil, errors.New("--designs or --items is required")
	}
	files, err := batch.GlobDesigns(patterns)
	if err != nil {
		return nil, nil, err
	}
	if len(files) == 0 {
		return nil, nil, errors.New("no design files found")
	}
	return batch.FileJobs(files), nil, nil
}

// cacheDirFor keeps downloads out of the output directory.
func (b *batchFlags) cacheDirFor() string {
	cache, err1 := filepath.Abs(b.cacheDir)
	out, err2 := filepath.Abs(b.outDir)
	if err1 == nil && err2 == nil && (out == cache || strings.HasPrefix(out, cache+string(filepath.Separator))) {
		return filepath.Join(b.cacheDir, "_json_cache")
	}
	return b.cacheDir
}

func (b *batchFlags) run(extra []string, renderFn batch.RenderFunc) error {
	jobs, fetcher, err := b.jobs(extra)
	if err != nil {
		return err
	}

	runner := &batch.Runner{
		Render:  renderFn,
		OutDir:  b.outDir,
		Pattern: b.pattern,
		Fetcher: fetcher,
		Verbose: b.verbose,
	}
	if b.uploadImgBB {
		key := b.imgbbKey
		if key == "" {
			key = os.Getenv("IMGBB_API_KEY")
		}
		if key == "" {
			return errors.New("--upload-imgbb requires --imgbb-key or IMGBB_API_KEY env var")
		}
		runner.Uploader = batch.NewImgBB(key)
	}
	if b.reportTemplate != "" || b.reportOut != "" {
		out := b.reportOut
		if out == "" {
			out = filepath.Join(b.outDir, "TEMU_results.xlsx")
		}
		session, err := report.Open(report.Options{Template: b.reportTemplate, Output: out})
		if err != nil {
			return err
		}
		runner.Report = session
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sum, runErr := runner.Run(ctx, jobs)
	if runner.Report != nil {
		if err := runner.Report.Close(); err != nil {
			log.Printf("Failed to save report: %v", err)
		}
		for _, p := range runner.Report.Saved() {
			fmt.Printf("Saved report: %s\n", p)
		}
	}

	fmt.Printf("Rendered %d images to %s", sum.Rendered, b.outDir)
	if sum.Skipped > 0 || sum.Failed > 0 {
		fmt.Printf(" (%d skipped, %d failed)", sum.Skipped, sum.Failed)
	}
	fmt.Println()
	if len(sum.Uploads) > 0 {
		fmt.Println("\nImgBB results:")
		for _, u := range sum.Uploads {
			fmt.Printf("- %s -> %s (delete: %s)\n", u.File, u.URL, u.DeleteURL)
		}
	}
	return runErr
}

// required reports the first named flag that was not set.
func required(fs *flag.FlagSet, names ...string) error {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	for _, n := range names {
		if !set[n] {
			return fmt.Errorf("--%s is required", n)
		}
	}
	return nil
}
