package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"iljit/internal/image"
)

var convertCmd = &cobra.Command{
	Use:   "convert <in> <out>",
	Short: "Re-encode an image (format chosen by extension: .yaml, .mp, .cbor)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		img, _, err := image.Read(args[0])
		if err != nil {
			return err
		}
		if check, _ := cmd.Flags().GetBool("check"); check {
			if len(img.Imports) > 0 {
				return fmt.Errorf("--check cannot build %s on its own: it imports %v", img.Name, img.Imports)
			}
			if _, err := image.Build(img, nil); err != nil {
				return err
			}
		}
		if err := image.Save(args[1], img); err != nil {
			return err
		}
		from, _ := image.FormatOf(args[0])
		to, _ := image.FormatOf(args[1])
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s -> %s\n", img.Name, from, to)
		return nil
	},
}

func init() {
	convertCmd.Flags().Bool("check", false, "build the image before writing it (images without imports only)")
}
