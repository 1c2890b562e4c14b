// Command tessera runs the image preprocessing pipelines from the
// command line: it decodes images, reports the selected resolutions,
// crop counts and token counts, and can dump the pixel tensors.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	root := &cobra.Command{
		Use:           "tessera",
		Short:         "Image preprocessing for vision-language models",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	root.AddCommand(preprocessCmd(), gridsCmd())

	if err := root.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}
