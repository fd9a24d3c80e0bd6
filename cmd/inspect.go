package cmd

import (
	"fmt"
	"image"
	"os"

	"github.com/AnyUserName/imgfit/internal/encoder"
	"github.com/AnyUserName/imgfit/internal/pipeline"
	"github.com/AnyUserName/imgfit/internal/resize"
	"github.com/spf13/cobra"
)

var (
	inspectPercent int
	inspectStep    int
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <input>",
	Short: "Show image dimensions and the JPEG size at each quality level",
	Long: `Decodes the input, applies --percent, and prints the encoded size at
quality levels from 5 to 95. Useful to pick a --target-kb that is
reachable before running resize.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().IntVar(&inspectPercent, "percent", 0, "percent change applied before measuring")
	inspectCmd.Flags().IntVar(&inspectStep, "step", 10, "quality step between samples")
	rootCmd.AddCommand(inspectCmd)
}

type curvePoint struct {
	quality int
	size    int
}

func runInspect(_ *cobra.Command, args []string) error {
	path := args[0]

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	img, format, err := pipeline.Decode(data)
	if err != nil {
		return err
	}
	if err := resize.ValidatePercent(inspectPercent); err != nil {
		return err
	}
	if inspectStep <= 0 {
		return fmt.Errorf("step must be positive, got %d", inspectStep)
	}

	resized := resize.Resize(img, inspectPercent)
	curve, err := qualityCurve(resized, inspectStep)
	if err != nil {
		return err
	}
	pngData, err := encoder.Encode(resized, encoder.PNG, 0, true)
	if err != nil {
		return err
	}

	b := img.Bounds()
	rb := resized.Bounds()
	fmt.Println()
	fmt.Printf("  File:        %s\n", path)
	fmt.Printf("  Format:      %s\n", format)
	fmt.Printf("  Dimensions:  %dx%d\n", b.Dx(), b.Dy())
	fmt.Printf("  Size:        %s\n", formatBytes(int64(len(data))))
	fmt.Printf("  Alpha:       %v\n", encoder.HasAlpha(img))
	if inspectPercent != 0 {
		fmt.Printf("  Resized:     %dx%d (%+d%%)\n", rb.Dx(), rb.Dy(), inspectPercent)
	}
	fmt.Println()

	fmt.Println("  JPEG size by quality:")
	for _, pt := range curve {
		fmt.Printf("    q=%-3d %10s\n", pt.quality, formatBytes(int64(pt.size)))
	}
	fmt.Printf("  PNG (optimized): %s\n", formatBytes(int64(len(pngData))))

	// The quality search assumes size never shrinks as quality grows.
	var warnings []string
	for i := 1; i < len(curve); i++ {
		if curve[i].size < curve[i-1].size {
			warnings = append(warnings, fmt.Sprintf("size drops from q=%d to q=%d",
				curve[i-1].quality, curve[i].quality))
		}
	}
	if len(warnings) > 0 {
		fmt.Println()
		fmt.Printf("  Warnings (%d):\n", len(warnings))
		for _, w := range warnings {
			fmt.Printf("    ⚠ %s\n", w)
		}
	}
	fmt.Println()
	return nil
}

// qualityCurve encodes img at 5, 5+step, ... and always at 95.
func qualityCurve(img image.Image, step int) ([]curvePoint, error) {
	enc := &encoder.JPEGEncoder{Optimize: true}
	var out []curvePoint
	for q := 5; ; q += step {
		if q > 95 {
			q = 95
		}
		data, err := enc.Encode(img, q)
		if err != nil {
			return nil, err
		}
		out = append(out, curvePoint{quality: q, size: len(data)})
		logVerbose("q=%d size=%d", q, len(data))
		if q == 95 {
			return out, nil
		}
	}
}
