package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/kozaktomas/photo-map/internal/logger"
	"github.com/kozaktomas/photo-map/internal/normalize"
	"github.com/kozaktomas/photo-map/internal/photo"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var locateCmd = &cobra.Command{
	Use:   "locate <file-or-folder> [file-or-folder...]",
	Short: "Print where photos were taken",
	Long: `Ingest photos and print the location found in their EXIF metadata.

Files are processed in argument order. For folders, only files directly in
the folder are used unless -r is given.
Supported formats: jpg, jpeg, png, gif, heic, heif, webp, tiff, bmp, dng

With --ai, photos without GPS data are sent to the configured AI model
(GEOCODER_PROVIDER) which guesses the location from the image content.

Example:
  photo-map locate IMG_0001.HEIC IMG_0002.jpg
  photo-map locate -r /path/to/photos
  photo-map locate --ai --json /path/to/photos`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLocate,
}

func init() {
	rootCmd.AddCommand(locateCmd)
	locateCmd.Flags().BoolP("recursive", "r", false, "Search for photos recursively in subdirectories")
	locateCmd.Flags().Bool("ai", false, "Ask the AI model to locate photos without GPS data")
	locateCmd.Flags().Bool("json", false, "Output as JSON")
}

// LocateResult is one line of locate output.
type LocateResult struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	State      string          `json:"state"`
	Location   *photo.Location `json:"location"`
	Place      string          `json:"place,omitempty"`
	Provenance string          `json:"provenance"`
	Camera     string          `json:"camera,omitempty"`
	TakenAt    string          `json:"taken_at,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	AIState    string          `json:"ai_state"`
}

// collectImageFiles expands folders to the image files they contain.
// Explicit file arguments are kept even when their extension is unknown.
func collectImageFiles(paths []string, recursive bool) ([]string, error) {
	var filePaths []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", path, err)
		}
		if !info.IsDir() {
			filePaths = append(filePaths, path)
			continue
		}

		if recursive {
			err := filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() && normalize.IsImageFile(d.Name()) {
					filePaths = append(filePaths, p)
				}
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("cannot walk folder %s: %w", path, err)
			}
			continue
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read folder %s: %w", path, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() && normalize.IsImageFile(entry.Name()) {
				filePaths = append(filePaths, filepath.Join(path, entry.Name()))
			}
		}
	}
	return filePaths, nil
}

func newProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// toLocateResult flattens a photo for output.
func toLocateResult(p photo.Photo) LocateResult {
	r := LocateResult{
		ID:         p.ID,
		Name:       p.Name,
		State:      string(p.State),
		Location:   p.Location,
		Place:      p.AILocationName,
		Provenance: string(p.Provenance),
		Reason:     p.FailureReason,
		AIState:    string(p.AIState),
	}
	if p.Metadata != nil {
		r.Camera = strings.TrimSpace(p.Metadata.Make + " " + p.Metadata.Model)
		if p.Metadata.CapturedAt != nil {
			r.TakenAt = p.Metadata.CapturedAt.Format("2006-01-02 15:04:05")
		}
	}
	return r
}

func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

func outputLocateTable(results []LocateResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATE\tLOCATION\tSOURCE\tCAMERA\tTAKEN\tREASON")
	fmt.Fprintln(w, "----\t-----\t--------\t------\t------\t-----\t------")

	for _, r := range results {
		location := "-"
		if r.Location != nil {
			location = fmt.Sprintf("%.5f, %.5f", r.Location.Lat, r.Location.Lng)
			if r.Place != "" {
				location += " (" + r.Place + ")"
			}
		}
		reason := r.Reason
		if r.AIState == string(photo.AIError) {
			reason = strings.TrimPrefix(reason+"; AI lookup failed", "; ")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Name, r.State, location, r.Provenance, r.Camera, r.TakenAt, reason)
	}

	w.Flush()
}

// readFiles loads paths in order, reporting and skipping unreadable ones.
func readFiles(paths []string) []normalize.File {
	files := make([]normalize.File, 0, len(paths))
	for _, path := range paths {
		f, err := normalize.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed: %v\n", err)
			continue
		}
		files = append(files, f)
	}
	return files
}

// locateMissing runs the AI lookup for every photo that ended without a location.
func locateMissing(ctx context.Context, a *app, ids []string) {
	var missing []string
	for _, id := range ids {
		if p, ok := a.store.Get(id); ok && !p.HasLocation() {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return
	}

	bar := newProgressBar(len(missing), "Locating")
	for _, id := range missing {
		if ctx.Err() != nil {
			break
		}
		// Failures are recorded on the photo.
		_ = a.enricher.Locate(ctx, id)
		bar.Add(1)
	}
	bar.Finish()
	fmt.Fprintln(os.Stderr)
}

func runLocate(cmd *cobra.Command, args []string) error {
	recursive := mustGetBool(cmd, "recursive")
	useAI := mustGetBool(cmd, "ai")
	jsonOutput := mustGetBool(cmd, "json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log)

	paths, err := collectImageFiles(args, recursive)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		fmt.Println("No image files found.")
		return nil
	}

	files := readFiles(paths)
	if len(files) == 0 {
		return fmt.Errorf("no files could be read")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	bar := newProgressBar(len(files), "Ingesting")
	unsubscribe := a.store.Subscribe(func(snap photo.Snapshot) {
		done := 0
		for _, p := range snap.Photos {
			if p.State != photo.StateLoading {
				done++
			}
		}
		bar.Set(done)
	})
	ids := a.pipeline.Ingest(ctx, files)
	unsubscribe()
	bar.Finish()
	fmt.Fprintln(os.Stderr)

	if useAI {
		locateMissing(ctx, a, ids)
	}

	results := make([]LocateResult, 0, len(ids))
	for _, id := range ids {
		if p, ok := a.store.Get(id); ok {
			results = append(results, toLocateResult(p))
		}
	}

	if jsonOutput {
		return outputJSON(results)
	}

	outputLocateTable(results)
	if useAI {
		usage := a.locator.GetUsage()
		fmt.Printf("\nAI usage: %d input tokens, %d output tokens, $%.4f\n",
			usage.InputTokens, usage.OutputTokens, usage.TotalCost)
	}
	return nil
}
