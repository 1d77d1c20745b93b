package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	mst "github.com/flywave/go-mst"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	readers "github.com/flywave/go-3dreaders"
)

var (
	outputPath string
	watchFile  bool
)

var loadCmd = &cobra.Command{
	Use:   "load <file>",
	Short: "Load a file through the reader matching its extension",
	Long: `Load picks a reader by file extension, runs its scene reader (or its
geometry reader when it has no scene reader) and prints a summary of the
result. With --output the mesh is written in MST format.`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

func init() {
	loadCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the loaded mesh to this .mst file")
	loadCmd.Flags().BoolVarP(&watchFile, "watch", "w", false, "Reload the file whenever it changes")
}

func runLoad(cmd *cobra.Command, args []string) error {
	cfg, logger, factory, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	fileName := args[0]
	out := cmd.OutOrStdout()
	if err := loadOnce(out, factory, fileName); err != nil {
		if !watchFile {
			return err
		}
		logger.Error("load failed", zap.String("file", fileName), zap.Error(err))
	}
	if !watchFile {
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return watchAndReload(ctx, fileName, cfg.Watch.Debounce, logger, func() {
		if err := loadOnce(out, factory, fileName); err != nil {
			logger.Error("reload failed", zap.String("file", fileName), zap.Error(err))
		}
	})
}

func loadOnce(w io.Writer, factory *readers.Factory, fileName string) error {
	r, err := factory.ReaderFor(fileName)
	if err != nil {
		return err
	}
	mesh, bbox, err := factory.Load(fileName)
	if err != nil {
		return err
	}
	printSummary(w, r, fileName, mesh, bbox)

	if outputPath == "" {
		return nil
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	mst.MeshMarshal(f, mesh)
	if err := f.Close(); err != nil {
		return fmt.Errorf("write %s: %w", outputPath, err)
	}
	return nil
}

func printSummary(w io.Writer, r readers.Reader, fileName string, mesh *mst.Mesh, bbox *[6]float64) {
	var vertices, faces int
	for _, nd := range mesh.Nodes {
		vertices += len(nd.Vertices)
		for _, g := range nd.FaceGroup {
			faces += len(g.Faces)
		}
	}
	fmt.Fprintln(w, headerStyle.Render(fileName))
	fmt.Fprintf(w, "  %s %s\n", dimStyle.Render("reader:   "), r.Name())
	fmt.Fprintf(w, "  %s %d\n", dimStyle.Render("nodes:    "), len(mesh.Nodes))
	fmt.Fprintf(w, "  %s %d\n", dimStyle.Render("instances:"), len(mesh.InstanceNode))
	fmt.Fprintf(w, "  %s %d\n", dimStyle.Render("vertices: "), vertices)
	fmt.Fprintf(w, "  %s %d\n", dimStyle.Render("triangles:"), faces)
	fmt.Fprintf(w, "  %s %d\n", dimStyle.Render("materials:"), len(mesh.Materials))
	if bbox != nil {
		fmt.Fprintf(w, "  %s [%g %g %g] - [%g %g %g]\n", dimStyle.Render("bounds:   "),
			bbox[0], bbox[1], bbox[2], bbox[3], bbox[4], bbox[5])
	}
}

