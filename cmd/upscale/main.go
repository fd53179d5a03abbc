package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"postergen/internal/domain"
	"postergen/internal/imaging"
	"postergen/internal/infra"
	"postergen/internal/providers/comfyui"
)

func main() {
	_ = infra.LoadDotEnv()

	var (
		inputFlag   string
		outputFlag  string
		baseURLFlag string
		modelFlag   string
		timeoutFlag time.Duration
		webpFlag    bool
	)
	flag.StringVar(&inputFlag, "in", "", "Source image: local file path or http(s) URL")
	flag.StringVar(&outputFlag, "out", "", "Output file (defaults to <input>_upscaled.<ext>)")
	flag.StringVar(&baseURLFlag, "comfyui", "", "ComfyUI base URL (fallbacks to COMFYUI_BASE_URL)")
	flag.StringVar(&modelFlag, "model", "", "Upscale model file name (fallbacks to COMFYUI_UPSCALE_MODEL)")
	flag.DurationVar(&timeoutFlag, "timeout", 0, "Polling timeout (fallbacks to COMFYUI_TIMEOUT_SECONDS)")
	flag.BoolVar(&webpFlag, "webp", false, "Write the result as WebP")
	flag.Parse()

	input := strings.TrimSpace(inputFlag)
	if input == "" && flag.NArg() > 0 {
		input = strings.TrimSpace(flag.Arg(0))
	}
	if input == "" {
		fmt.Fprintln(os.Stderr, "an input file or URL is required via -in")
		os.Exit(1)
	}

	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("cmd", "upscale").Logger()

	baseURL := firstNonEmpty(baseURLFlag, cfg.ComfyUIBaseURL)
	timeout := timeoutFlag
	if timeout <= 0 {
		timeout = cfg.ComfyUITimeout()
	}
	client, err := comfyui.NewClient(comfyui.Options{
		BaseURL:      baseURL,
		Logger:       &logger,
		ModelName:    firstNonEmpty(modelFlag, cfg.ComfyUIUpscaleModel),
		PollInterval: cfg.ComfyUIPollInterval(),
		Timeout:      timeout,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create client: %v\n", err)
		os.Exit(1)
	}

	src, err := loadSource(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read input: %v\n", err)
		os.Exit(1)
	}
	if len(src.Data) > 0 {
		if info, err := imaging.Inspect(src.Data); err == nil {
			w, h := info.Expected(domain.UpscaleFactor)
			fmt.Printf("source %dx%d %s (%.2f MB), expected %dx%d\n", info.Width, info.Height, info.Format, info.SizeMB(), w, h)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := client.Upscale(ctx, src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "upscale failed: %v\n", err)
		os.Exit(1)
	}

	data := res.Data
	ext := filepath.Ext(res.Output.Filename)
	if webpFlag {
		data, err = imaging.ToWebP(res.Data, imaging.DefaultWebPQuality)
		if err != nil {
			fmt.Fprintf(os.Stderr, "webp conversion failed: %v\n", err)
			os.Exit(1)
		}
		ext = ".webp"
	}
	output := strings.TrimSpace(outputFlag)
	if output == "" {
		output = defaultOutput(input, ext)
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("job %s finished in %s, wrote %s\n", res.JobID, res.Elapsed, output)
}

func loadSource(input string) (comfyui.Source, error) {
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		return comfyui.Source{URL: input}, nil
	}
	data, err := os.ReadFile(input)
	if err != nil {
		return comfyui.Source{}, err
	}
	return comfyui.Source{Data: data, Filename: filepath.Base(input)}, nil
}

func defaultOutput(input, ext string) string {
	if ext == "" {
		ext = ".png"
	}
	base := input
	if i := strings.LastIndex(base, "/"); strings.Contains(base, "://") && i >= 0 {
		base = base[i+1:]
		if q := strings.IndexAny(base, "?#"); q >= 0 {
			base = base[:q]
		}
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" {
		base = "image"
	}
	return base + "_upscaled" + ext
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
