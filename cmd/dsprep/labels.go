package main

import (
	"fmt"
	"os"

	"github.com/michaelscutari/dsprep/internal/dataset"
	"github.com/spf13/cobra"
)

var labelsCmd = &cobra.Command{
	Use:   "labels",
	Short: "Print, write or check a class label map",
	Long: `Build a label map from the class folders of a dataset, assigning labels
in sorted name order. With --check, validate an existing map against the
dataset instead.`,
	RunE: runLabels,
}

var (
	labelsInput string
	labelsWrite string
	labelsCheck string
)

func init() {
	labelsCmd.Flags().StringVarP(&labelsInput, "input", "i", "", "Dataset root (default normalize.input_dir)")
	labelsCmd.Flags().StringVarP(&labelsWrite, "write", "w", "", "Write the map to this file instead of stdout")
	labelsCmd.Flags().StringVar(&labelsCheck, "check", "", "Validate this label map against the dataset")
}

func runLabels(cmd *cobra.Command, args []string) error {
	input := labelsInput
	if input == "" {
		input = cfg.Normalize.InputDir
	}

	opts, err := buildOptions(cfg.Normalize)
	if err != nil {
		return err
	}
	classes, err := dataset.Discover(input, opts.ShouldExclude)
	if err != nil {
		return fmt.Errorf("failed to read dataset: %w", err)
	}
	names := dataset.Names(classes)

	if labelsCheck != "" {
		m, err := dataset.LoadLabels(labelsCheck)
		if err != nil {
			return err
		}
		if err := m.Validate(names); err != nil {
			return fmt.Errorf("%s: %w", labelsCheck, err)
		}
		fmt.Printf("OK: %d classes labelled\n", len(names))
		return nil
	}

	m := dataset.BuildLabels(names)
	if labelsWrite != "" {
		if err := m.Save(labelsWrite); err != nil {
			return fmt.Errorf("failed to write label map: %w", err)
		}
		fmt.Printf("Wrote %d labels to %s\n", len(m.Classes), labelsWrite)
		return nil
	}

	data, err := m.Marshal()
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}
