// Command slidebench slides an image cache across a directory on a
// headless device and reports atlas and cache statistics.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/bytedance/sonic"

	"github.com/gogpu/slider"
	"github.com/gogpu/slider/atlas"
	"github.com/gogpu/slider/backend/native"
)

func main() {
	var (
		dir         = flag.String("dir", "", "image directory (required)")
		configPath  = flag.String("config", "", "TOML configuration file")
		cacheCount  = flag.Int("cache", 0, "images kept on each side of the cursor (0: config or default)")
		strategy    = flag.String("strategy", "", "cache strategy: cpu, gpu or atlas")
		compression = flag.String("compression", "", "texture compression: none or bc1")
		start       = flag.Int("start", 0, "initial image index")
		steps       = flag.Int("steps", -1, "number of forward moves (-1: to the last image)")
		asJSON      = flag.Bool("json", false, "print statistics as JSON")
		verbose     = flag.Bool("v", false, "debug logging to stderr")
	)
	flag.Parse()

	if *dir == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *verbose {
		slider.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	cfg := slider.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = slider.LoadConfig(*configPath); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	if *cacheCount > 0 {
		cfg.CacheCount = *cacheCount
	}
	if *strategy != "" {
		s, err := slider.ParseStrategy(*strategy)
		if err != nil {
			log.Fatal(err)
		}
		cfg.Strategy = s
	}
	if *compression != "" {
		if _, err := atlas.ParseCompression(*compression); err != nil {
			log.Fatal(err)
		}
		cfg.Compression = *compression
	}
	opts, err := cfg.Options()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	dev, err := native.NewNoop()
	if err != nil {
		log.Fatalf("Failed to create device: %v", err)
	}
	defer func() {
		if err := dev.Close(); err != nil {
			log.Printf("Failed to close device: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	report, err := run(ctx, *dir, *start, *steps, append(opts, slider.WithDevice(dev))...)
	if err != nil {
		log.Fatal(err)
	}

	if *asJSON {
		out, err := sonic.ConfigStd.MarshalIndent(report, "", "  ")
		if err != nil {
			log.Fatalf("Failed to encode report: %v", err)
		}
		fmt.Println(string(out))
		return
	}
	printReport(report)
}

// report is the outcome of one run.
type report struct {
	Dir      string       `json:"dir"`
	Moves    int          `json:"moves"`
	Skipped  int          `json:"skipped"`
	LoadTime string       `json:"load_time"`
	MoveTime string       `json:"move_time"`
	Stats    slider.Stats `json:"stats"`
}

func run(ctx context.Context, dir string, start, steps int, opts ...slider.Option) (*report, error) {
	v, err := slider.Open(ctx, dir, opts...)
	if err != nil {
		return nil, err
	}
	defer v.Close()

	if start < 0 || start >= v.Len() {
		return nil, fmt.Errorf("start %d out of range [0, %d)", start, v.Len())
	}
	if steps < 0 || start+steps > v.Len()-1 {
		steps = v.Len() - 1 - start
	}

	r := &report{Dir: dir}
	t0 := time.Now()
	if err := v.Load(ctx, start); err != nil {
		return nil, err
	}
	r.LoadTime = time.Since(t0).String()

	t0 = time.Now()
	for i := 0; i < steps; i++ {
		data, err := v.Next(ctx)
		if err != nil {
			return nil, fmt.Errorf("move to image %d: %w", v.CurrentIndex()+1, err)
		}
		if data == nil {
			r.Skipped++
		}
		r.Moves++
	}
	r.MoveTime = time.Since(t0).String()
	r.Stats = v.Stats()
	return r, nil
}

func printReport(r *report) {
	s := r.Stats
	fmt.Printf("directory:   %s\n", r.Dir)
	fmt.Printf("strategy:    %s\n", s.Strategy)
	fmt.Printf("images:      %d\n", s.Images)
	fmt.Printf("moves:       %d (%d skipped)\n", r.Moves, r.Skipped)
	fmt.Printf("load time:   %s\n", r.LoadTime)
	fmt.Printf("move time:   %s\n", r.MoveTime)
	fmt.Printf("cursor:      %d (offset %d)\n", s.CurrentIndex, s.Offset)
	fmt.Printf("window:      %v\n", s.Indices)
	fmt.Printf("loaded:      %d slots, %d bytes\n", s.Loaded, s.LoadedBytes)
	if s.Atlas != nil {
		fmt.Printf("atlas:       %d layers (%d busy, %d full), %d allocations, %d fallbacks\n",
			s.Atlas.Layers, s.Atlas.BusyLayers, s.Atlas.FullLayers, s.Atlas.Allocations, s.AtlasFallbacks)
	}
	if s.Textures != nil {
		fmt.Printf("textures:    %d cached, hit rate %.2f\n", s.Textures.Len, s.Textures.HitRate)
	}
}
