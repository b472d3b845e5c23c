package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/nao1215/floorscan/internal/config"
	"github.com/nao1215/floorscan/internal/database"
	"github.com/nao1215/floorscan/internal/model"
	"github.com/nao1215/floorscan/internal/render"
	"github.com/spf13/cobra"
)

// defaultHistoryLimit is the number of rows listed by default.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [id]",
		Short: "List or show recorded extractions",
		Long: `History reads the extractions recorded by "serve --history" and
"extract --save".

Without arguments the most recent extractions are listed. With an ID the
stored extraction is printed in the selected format.

Examples:
  # List the 20 most recent extractions
  floorscan history

  # Show one extraction as Markdown
  floorscan history --format markdown 3f1c2a4e-...

  # List earlier extractions of the same image
  floorscan history --image plan.png`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", defaultHistoryLimit,
		"Maximum number of extractions to list (0 lists all)")
	cmd.Flags().StringP("format", "f", render.FormatText,
		"Output format for a single extraction: "+strings.Join(render.Formats(), ", "))
	cmd.Flags().String("image", "",
		"List extractions of the image at this path")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := openExistingHistory(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	if len(args) == 1 {
		format, err := cmd.Flags().GetString("format")
		if err != nil {
			return err
		}
		writer, err := render.New(format, out)
		if err != nil {
			return err
		}
		extraction, err := db.GetExtraction(ctx, args[0])
		if err != nil {
			return err
		}
		if !extraction.Succeeded() {
			fmt.Fprintf(cmd.ErrOrStderr(), "Extraction failed at %s: %s\n", extraction.FailedStep, extraction.ErrorMessage)
		}
		_, err = writer.Write(extraction)
		return err
	}

	imagePath, err := cmd.Flags().GetString("image")
	if err != nil {
		return err
	}
	if imagePath != "" {
		data, err := os.ReadFile(imagePath) //nolint:gosec // User-provided image path is intentional
		if err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}
		digest := model.NewUploadedImage(filepath.Base(imagePath), "", data).Digest()
		summaries, err := db.FindByDigest(ctx, digest)
		if err != nil {
			return err
		}
		return writeSummaries(out, summaries)
	}

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	summaries, err := db.ListExtractions(ctx, limit)
	if err != nil {
		return err
	}
	return writeSummaries(out, summaries)
}

// openExistingHistory opens the history database without creating it.
func openExistingHistory(cfg *config.Config) (*database.HistoryDB, error) {
	if _, err := os.Stat(filepath.Join(cfg.DBDir, database.FileName)); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("no history found in %s (run serve --history or extract --save first)", cfg.DBDir)
	}
	return database.Open(cfg.DBDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
}

// writeSummaries prints one line per extraction.
func writeSummaries(w io.Writer, summaries []database.ExtractionSummary) error {
	if len(summaries) == 0 {
		_, err := fmt.Fprintln(w, "No extractions recorded.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFILE\tSTATUS\tROOMS\tSTARTED")
	for _, s := range summaries {
		status := string(s.Status)
		if s.FailedStep != "" {
			status += " (" + s.FailedStep + ")"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			s.ID, s.Filename, status, s.RoomCount, s.StartedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}
