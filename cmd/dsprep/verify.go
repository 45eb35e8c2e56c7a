package main

import (
	"context"
	"fmt"

	"github.com/michaelscutari/dsprep/internal/normalize"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check an output tree against its dataset",
	Long: `Check that every source image has exactly one output image of the
configured size in the mirrored class folder. Exits non-zero when any
problem is found.`,
	RunE: runVerify,
}

var verifyLimit int

func init() {
	f := verifyCmd.Flags()
	f.StringVarP(&normInput, "input", "i", "dataset", "Dataset root, one folder per class")
	f.StringVarP(&normOutput, "output", "o", "resized_dataset", "Output root")
	f.IntVar(&normWidth, "width", 128, "Expected width in pixels")
	f.IntVar(&normHeight, "height", 128, "Expected height in pixels")
	f.StringVar(&normPrefix, "prefix", "resized_", "Prefix of output file names")
	f.StringSliceVarP(&normExclude, "exclude", "e", nil, "Regex patterns for class folder and file names the run skipped")
	f.IntVarP(&verifyLimit, "limit", "n", 50, "Maximum number of problems to print (0 = all)")
}

func runVerify(cmd *cobra.Command, args []string) error {
	applyNormalizeFlags(cmd, cfg)
	if err := cfg.ValidateNormalize(); err != nil {
		return err
	}
	n := cfg.Normalize

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopSignals := onInterrupt(cancel)
	defer stopSignals()

	opts, err := buildOptions(n)
	if err != nil {
		return err
	}
	violations, err := normalize.Verify(ctx, n.InputDir, n.OutputDir, opts)
	if err != nil {
		return fmt.Errorf("verify failed: %w", err)
	}
	if len(violations) == 0 {
		fmt.Printf("OK: %s matches %s at %dx%d\n", n.OutputDir, n.InputDir, n.Width, n.Height)
		return nil
	}

	for i, v := range violations {
		if verifyLimit > 0 && i == verifyLimit {
			fmt.Printf("... and %d more\n", len(violations)-i)
			break
		}
		fmt.Println(v.String())
	}
	return fmt.Errorf("%d problems found", len(violations))
}
