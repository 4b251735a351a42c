package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ziqiangxu/medical-image-viewer/internal/logger"
	"github.com/ziqiangxu/medical-image-viewer/internal/models"
	"github.com/ziqiangxu/medical-image-viewer/pkg/config"
	"github.com/ziqiangxu/medical-image-viewer/pkg/preview"
	"github.com/ziqiangxu/medical-image-viewer/pkg/segmentation"
	"github.com/ziqiangxu/medical-image-viewer/pkg/session"
	"github.com/ziqiangxu/medical-image-viewer/pkg/volumeio"
)

func main() {
	// Parse command line arguments
	inputDir := flag.String("input", "", "Directory containing the DICOM or image slices")
	configPath := flag.String("config", "", "YAML configuration file (defaults when empty or missing)")
	seedArg := flag.String("seed", "", "Seed voxel as slice,row,col")
	algorithm := flag.String("algorithm", "", "Growth algorithm: by_threshold or grow_every_slice")
	threshold := flag.Float64("threshold", 0, "Threshold for by_threshold (estimated from the seed when absent)")
	strictness := flag.String("strictness", "", "by_threshold reach: volumetric, slice_propagation or single_slice")
	ratio := flag.Float64("ratio", 0, "Std multiplier of grow_every_slice")
	minIter := flag.Int("min-iter", 0, "Consecutive degenerate slices that stop propagation")
	eraseArg := flag.String("erase", "", "Rectangle to erase after growth as slice,row,col,height,width")
	minObject := flag.Int("min-object", -1, "Remove connected objects of at most this many voxels")
	previewDir := flag.String("preview-dir", "", "Directory receiving the segmented slices")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	logFile := flag.String("log-file", "", "Append JSON log events to this file")
	flag.Parse()

	if *inputDir == "" || *seedArg == "" {
		flag.Usage()
		os.Exit(1)
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Command line flags override the configuration file
	if set["algorithm"] {
		cfg.Segmentation.Algorithm = *algorithm
	}
	if set["threshold"] {
		cfg.Segmentation.SetThreshold(*threshold)
	}
	if set["strictness"] {
		cfg.Segmentation.Strictness = *strictness
	}
	if set["ratio"] {
		cfg.Segmentation.Ratio = *ratio
	}
	if set["min-iter"] {
		cfg.Segmentation.MinIter = *minIter
	}
	if set["min-object"] {
		cfg.PostProcess.MinObjectSize = *minObject
	}
	if set["preview-dir"] {
		cfg.Output.Dir = *previewDir
		cfg.Output.SaveMarkedSlices = true
	}
	if set["verbose"] {
		cfg.Output.Verbose = *verbose
	}
	if set["log-file"] {
		cfg.Output.LogFile = *logFile
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	var sinks []io.Writer
	if cfg.Output.LogFile != "" {
		f, err := os.OpenFile(cfg.Output.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		sinks = append(sinks, f)
	}
	log := logger.New(os.Stderr, cfg.Output.Verbose, sinks...)

	seed, err := parseSeed(*seedArg)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid -seed")
	}
	var erase *eraseRequest
	if *eraseArg != "" {
		if erase, err = parseErase(*eraseArg); err != nil {
			log.Fatal().Err(err).Msg("invalid -erase")
		}
	}

	fmt.Println("================================")
	fmt.Println("LESION SEGMENTATION BY REGION GROWING")
	fmt.Println("================================")

	start := time.Now()
	if err := run(cfg, *inputDir, seed, erase, log); err != nil {
		fmt.Fprintln(os.Stderr, session.UserMessage(err))
		log.Fatal().Err(err).Msg("segmentation failed")
	}
	fmt.Printf("\nCompleted in %.2f seconds\n", time.Since(start).Seconds())
}

// needsEstimate reports whether a threshold must be estimated from the seed.
// grow_every_slice derives its own thresholds.
func needsEstimate(algorithm string, threshold *float64) bool {
	return algorithm == segmentation.NameByThreshold && threshold == nil
}

type eraseRequest struct {
	slice int
	rect  models.Rect
}

func run(cfg *config.Config, inputDir string, seed segmentation.Pixel, erase *eraseRequest, log zerolog.Logger) error {
	state := session.New(log)
	if err := state.LoadDir(volumeio.NewLoader(log), inputDir); err != nil {
		return err
	}

	vol, _ := state.Volume()
	fmt.Printf("Loaded %d slices of %dx%d from %s\n", vol.Shape.Slices, vol.Shape.Rows, vol.Shape.Cols, inputDir)
	if state.VoxelSize() > 0 {
		fmt.Printf("Voxel size: %.4f mm³\n", state.VoxelSize())
	}

	if err := state.SetSeed(seed); err != nil {
		return err
	}

	name, err := segmentation.ParseAlgorithmName(cfg.Segmentation.Algorithm)
	if err != nil {
		return err
	}
	if needsEstimate(name, cfg.Segmentation.Threshold) {
		estOpts, err := cfg.EstimatorOptions(log)
		if err != nil {
			return err
		}
		est, err := state.Estimate(estOpts)
		if err != nil {
			return err
		}
		cfg.Segmentation.SetThreshold(est.Threshold)

		fmt.Printf("\nThreshold estimate at seed %s:\n", seed)
		fmt.Printf("- Reference intensity: %.2f\n", est.Reference)
		fmt.Printf("- Region mean/std: %.2f / %.2f (%d voxels)\n", est.Stats.Mean, est.Stats.Std, est.Voxels)
		fmt.Printf("- Threshold: %.2f (range %.2f to %.2f)\n", est.Threshold, est.SliderMin, est.SliderMax)
	} else if cfg.Segmentation.Threshold != nil {
		state.SetThreshold(*cfg.Segmentation.Threshold)
	}

	alg, err := cfg.Segmentation.Variant()
	if err != nil {
		return err
	}
	opts, err := cfg.Segmentation.Options(log)
	if err != nil {
		return err
	}

	res, err := state.Run(alg, opts)
	if err != nil {
		return err
	}
	fmt.Printf("\n%s grew %d voxels over %d visited slices\n", alg.Name(), res.Voxels, len(res.Slices))

	if erase != nil {
		if err := state.EraseROI(erase.slice, erase.rect); err != nil {
			return err
		}
		fmt.Printf("Erased %s on slice %d\n", erase.rect, erase.slice)
	}

	if cfg.PostProcess.MinObjectSize > 0 {
		removed, err := state.RemoveSmallObjects(cfg.PostProcess.MinObjectSize)
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d voxels in objects of at most %d voxels\n", removed, cfg.PostProcess.MinObjectSize)
	}

	sum, err := state.Summary()
	if err != nil {
		return err
	}
	fmt.Printf("\nSegmented voxels: %d\n", sum.Voxels)
	if sum.VoxelSize > 0 {
		fmt.Printf("Lesion volume: %.2f mm³ (%.3f cm³)\n", sum.VolumeMM3, sum.VolumeCM3)
	}

	if cfg.Output.SaveMarkedSlices {
		overlay, _ := state.Overlay()
		viewer, err := preview.NewViewer(vol, overlay)
		if err != nil {
			return err
		}
		viewer.SetOpacity(uint8(cfg.Preview.Opacity))
		if err := viewer.SetScale(cfg.Preview.Scale); err != nil {
			return err
		}
		written, err := viewer.SaveMarkedSlices(cfg.Output.Dir, cfg.Preview.Format)
		if err != nil {
			return err
		}
		fmt.Printf("Saved %d marked slices to %s\n", len(written), cfg.Output.Dir)
	}
	return nil
}

func parseInts(arg string, n int) ([]int, error) {
	parts := strings.Split(arg, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d comma separated integers, got %q", n, arg)
	}
	out := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("%q: %w", arg, err)
		}
		out[i] = v
	}
	return out, nil
}

func parseSeed(arg string) (segmentation.Pixel, error) {
	v, err := parseInts(arg, 3)
	if err != nil {
		return segmentation.Pixel{}, err
	}
	return segmentation.Pixel{Slice: v[0], Row: v[1], Col: v[2]}, nil
}

func parseErase(arg string) (*eraseRequest, error) {
	v, err := parseInts(arg, 5)
	if err != nil {
		return nil, err
	}
	return &eraseRequest{
		slice: v[0],
		rect:  models.Rect{Row: v[1], Col: v[2], Rows: v[3], Cols: v[4]},
	}, nil
}
