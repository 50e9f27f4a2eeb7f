package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"screen-bot/api/internal/config"
)

// shotCMD runs one capture, extraction and answer locally and prints the
// result. Handy to check the capture command and the API keys.
func shotCMD() *cobra.Command {
	var keep bool
	cmd := &cobra.Command{
		Use:   "shot",
		Short: "Capture the screen once, extract text and answer it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadLocal()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			art, err := a.capturer.Capture(ctx)
			if err != nil {
				return err
			}
			if !keep {
				defer func() { _ = art.Release() }()
			}

			res := a.pipeline.Once(ctx, 0, art.Path)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "file: %s\n", art.Path)
			if res.Text != "" {
				fmt.Fprintf(out, "\n--- text ---\n%s\n", res.Text)
			}
			if res.Answer != "" {
				fmt.Fprintf(out, "\n--- answer ---\n%s\n", res.Answer)
			} else {
				fmt.Fprintf(out, "\n%s\n", res.AnswerNote)
			}
			fmt.Fprintf(os.Stderr, "took %s\n", res.Duration)
			return nil
		},
	}
	cmd.Flags().BoolVar(&keep, "keep", false, "keep the captured file")
	return cmd
}
