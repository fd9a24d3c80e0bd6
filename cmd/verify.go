package cmd

import (
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/AnyUserName/imgfit/internal/hasher"
	"github.com/AnyUserName/imgfit/internal/report"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <report_path>",
	Short: "Check a saved export against its JSON report",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(_ *cobra.Command, args []string) error {
	reportPath := args[0]

	r, err := report.ReadJSON(reportPath)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}

	errs := verifyReport(r, filepath.Dir(reportPath))
	if len(errs) == 0 {
		fmt.Println("  ✓ Report is valid")
		fmt.Printf("  ✓ %s: %dx%d %s, %.1f KB\n",
			r.Output.Path, r.Output.Width, r.Output.Height, r.Output.Format, r.SizeKB())
		return nil
	}

	fmt.Printf("  ✗ Report has %d error(s):\n", len(errs))
	for _, e := range errs {
		fmt.Printf("    • %s\n", e)
	}
	return fmt.Errorf("verification failed with %d errors", len(errs))
}

// verifyReport checks the report fields and, when the export was saved,
// that the file on disk still matches. Relative output paths are tried
// as given and then relative to baseDir.
func verifyReport(r *report.Report, baseDir string) []string {
	var errs []string

	if r.Version != report.SupportedVersion {
		errs = append(errs, fmt.Sprintf("unsupported report version: %d", r.Version))
	}
	if r.Source.Width <= 0 || r.Source.Height <= 0 {
		errs = append(errs, fmt.Sprintf("invalid source dimensions %dx%d", r.Source.Width, r.Source.Height))
	}
	o := r.Output
	if o.Width <= 0 || o.Height <= 0 {
		errs = append(errs, fmt.Sprintf("invalid output dimensions %dx%d", o.Width, o.Height))
	}
	if o.Format != "jpeg" && o.Format != "png" {
		errs = append(errs, fmt.Sprintf("unsupported output format %q", o.Format))
	}
	if o.Hash == "" {
		errs = append(errs, "missing hash")
	}
	if r.Searched && r.TargetMet && o.Size > int64(r.TargetKB)*1024 {
		errs = append(errs, fmt.Sprintf("target met but size %d > %d KB", o.Size, r.TargetKB))
	}
	if o.Path == "" {
		errs = append(errs, "export was not saved; nothing to check on disk")
		return errs
	}

	path := o.Path
	if _, err := os.Stat(path); err != nil && !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, o.Path)
	}
	f, err := os.Open(path)
	if err != nil {
		errs = append(errs, fmt.Sprintf("file not found: %s", o.Path))
		return errs
	}
	defer f.Close()

	if st, err := f.Stat(); err == nil && st.Size() != o.Size {
		errs = append(errs, fmt.Sprintf("size mismatch: report=%d, disk=%d", o.Size, st.Size()))
	}
	h, err := hasher.ContentHashReader(f, len(o.Hash))
	if err != nil {
		errs = append(errs, fmt.Sprintf("hash %s: %v", o.Path, err))
		return errs
	}
	if h != o.Hash {
		errs = append(errs, fmt.Sprintf("hash mismatch: report=%s, disk=%s", o.Hash, h))
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		errs = append(errs, fmt.Sprintf("rewind %s: %v", o.Path, err))
		return errs
	}
	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		errs = append(errs, fmt.Sprintf("decode %s: %v", o.Path, err))
		return errs
	}
	if format != o.Format {
		errs = append(errs, fmt.Sprintf("format mismatch: report=%s, disk=%s", o.Format, format))
	}
	if cfg.Width != o.Width || cfg.Height != o.Height {
		errs = append(errs, fmt.Sprintf("dimension mismatch: report=%dx%d, disk=%dx%d",
			o.Width, o.Height, cfg.Width, cfg.Height))
	}
	return errs
}
