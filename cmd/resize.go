package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/AnyUserName/imgfit/internal/encoder"
	"github.com/AnyUserName/imgfit/internal/pipeline"
	"github.com/AnyUserName/imgfit/internal/preset"
	"github.com/AnyUserName/imgfit/internal/quality"
	"github.com/AnyUserName/imgfit/internal/report"
	"github.com/spf13/cobra"
)

var (
	resizeOut        string
	resizePreset     string
	resizePercent    int
	resizeTargetKB   int
	resizeQualityMin int
	resizeQualityMax int
	resizeQuality    int
	resizeNoOptimize bool
	resizeSave       bool
	resizeStdout     bool
	resizeReport     string
)

var resizeCmd = &cobra.Command{
	Use:   "resize <input>",
	Short: "Resize an image and export it, optionally within a size budget",
	Long: `Scales a JPEG or PNG by --percent (-80..200), then encodes it in the
format chosen by the --out extension (.png → PNG, anything else → JPEG).

With --target-kb, JPEG quality is binary searched for the highest
quality whose file fits the target. When even the lowest quality is too
big, the smallest encoding is exported and the miss is reported.`,
	Args: cobra.ExactArgs(1),
	RunE: runResize,
}

func init() {
	f := resizeCmd.Flags()
	f.StringVarP(&resizeOut, "out", "o", "resized_image.jpg", "output filename; its extension selects the format")
	f.StringVarP(&resizePreset, "preset", "p", "default", "parameter preset")
	f.IntVar(&resizePercent, "percent", 0, "percent change of both dimensions (-80..200)")
	f.IntVarP(&resizeTargetKB, "target-kb", "t", 0, "target size in KB (0 = no target)")
	f.IntVar(&resizeQualityMin, "quality-min", 0, "lowest JPEG quality the search may use")
	f.IntVar(&resizeQualityMax, "quality-max", 0, "highest JPEG quality the search may use")
	f.IntVarP(&resizeQuality, "quality", "q", 0, "JPEG quality without a target (0 = preset default)")
	f.BoolVar(&resizeNoOptimize, "no-optimize", false, "use image/jpeg and default PNG compression")
	f.BoolVar(&resizeSave, "save", true, "write the export to --out")
	f.BoolVar(&resizeStdout, "stdout", false, "write the exported bytes to stdout")
	f.StringVar(&resizeReport, "report", "", "write a JSON report to this path")
	rootCmd.AddCommand(resizeCmd)
}

func runResize(cmd *cobra.Command, args []string) error {
	inputPath := args[0]
	start := time.Now()

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	img, srcFormat, err := pipeline.Decode(data)
	if err != nil {
		return err
	}

	req := buildRequest(cmd, presets.Get(resizePreset))
	logVerbose("input:   %s (%s, %dx%d)", inputPath, srcFormat, img.Bounds().Dx(), img.Bounds().Dy())
	logVerbose("request: percent=%d target=%dKB bounds=%d..%d out=%s",
		req.Percent, req.TargetKB, req.Bounds.Low, req.Bounds.High, req.Filename)

	p := pipeline.New(pipeline.Config{Logger: logger})
	res, err := p.Process(img, req)
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	var saveErr error
	savedPath := ""
	if resizeSave {
		if saveErr = pipeline.Save(resizeOut, res.Data); saveErr != nil {
			fmt.Fprintf(os.Stderr, "  ⚠ %v\n", saveErr)
		} else {
			savedPath = resizeOut
		}
	}
	if resizeStdout {
		if _, err := os.Stdout.Write(res.Data); err != nil {
			return fmt.Errorf("write stdout: %w", err)
		}
		fmt.Fprintf(os.Stderr, "[imgfit] %s\n", res.Summary())
	} else {
		printResizeReport(inputPath, len(data), res, savedPath, time.Since(start))
	}

	if resizeReport != "" {
		r := buildReport(inputPath, srcFormat, int64(len(data)), req.Percent, res, savedPath)
		if err := report.WriteJSON(r, resizeReport); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		logVerbose("report:  %s", resizeReport)
	}

	// A failed save is only fatal when the bytes went nowhere else.
	if saveErr != nil && !resizeStdout {
		return saveErr
	}
	return nil
}

// buildRequest starts from the preset and lets explicitly set flags win.
func buildRequest(cmd *cobra.Command, p preset.Preset) pipeline.Request {
	f := cmd.Flags()
	req := pipeline.Request{
		Percent:        p.Percent,
		TargetKB:       p.TargetKB,
		Filename:       resizeOut,
		Bounds:         quality.Bounds{Low: p.QualityMin, High: p.QualityMax},
		DefaultQuality: p.DefaultQuality,
		Optimize:       !resizeNoOptimize,
	}
	if f.Changed("percent") {
		req.Percent = resizePercent
	}
	if f.Changed("target-kb") {
		req.TargetKB = resizeTargetKB
	}
	if f.Changed("quality-min") {
		req.Bounds.Low = resizeQualityMin
	}
	if f.Changed("quality-max") {
		req.Bounds.High = resizeQualityMax
	}
	if f.Changed("quality") {
		req.DefaultQuality = resizeQuality
	}
	return req
}

func buildReport(input, srcFormat string, srcSize int64, percent int, res *pipeline.Result, savedPath string) *report.Report {
	r := report.New()
	ob := res.Original.Bounds()
	pb := res.Preview.Bounds()
	r.Source = report.SourceInfo{
		Name:   filepath.Base(input),
		Width:  ob.Dx(),
		Height: ob.Dy(),
		Format: srcFormat,
		Size:   srcSize,
	}
	r.Output = report.OutputInfo{
		Path:    savedPath,
		Format:  string(res.Format),
		Width:   pb.Dx(),
		Height:  pb.Dy(),
		Size:    int64(len(res.Data)),
		Quality: res.Quality,
		Hash:    res.Hash,
	}
	r.PercentChange = percent
	r.TargetKB = res.TargetKB
	r.TargetMet = res.TargetMet
	r.Searched = res.Searched
	return r
}

func printResizeReport(input string, inputSize int, res *pipeline.Result, savedPath string, elapsed time.Duration) {
	ob := res.Original.Bounds()
	pb := res.Preview.Bounds()

	fmt.Println()
	fmt.Printf("  Input:       %s\n", input)
	fmt.Printf("  Original:    %dx%d, %s\n", ob.Dx(), ob.Dy(), formatBytes(int64(inputSize)))
	fmt.Printf("  Resized:     %dx%d\n", pb.Dx(), pb.Dy())
	fmt.Printf("  Format:      %s\n", res.Format)
	if res.Format == encoder.JPEG {
		fmt.Printf("  Quality:     %d\n", res.Quality)
	}
	fmt.Printf("  Size:        %s (%.1f KB)\n", formatBytes(int64(len(res.Data))), res.SizeKB())
	if res.TargetKB > 0 {
		switch {
		case res.Format == encoder.PNG:
			fmt.Printf("  Target:      %d KB (ignored for PNG)\n", res.TargetKB)
		case res.TargetMet:
			fmt.Printf("  Target:      %d KB ✓\n", res.TargetKB)
		default:
			fmt.Printf("  Target:      %d KB ✗ not reachable, smallest achievable exported\n", res.TargetKB)
		}
	}
	if verbose && len(res.Probes) > 0 {
		fmt.Println("  Search:")
		for _, pr := range res.Probes {
			fmt.Printf("    q=%-3d %10s\n", pr.Quality, formatBytes(int64(pr.Size)))
		}
	}
	fmt.Printf("  Hash:        %s\n", res.Hash)
	if savedPath != "" {
		fmt.Printf("  Saved:       %s\n", savedPath)
	}
	fmt.Printf("  Time:        %s\n", elapsed.Round(time.Millisecond))
	fmt.Println()
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

