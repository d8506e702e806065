package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alnah/go-dub/internal/job"
	"github.com/alnah/go-dub/internal/lang"
)

// supportedContainers are the input formats ffmpeg demuxes reliably.
var supportedContainers = map[string]bool{
	".mp4": true, ".mkv": true, ".webm": true, ".mov": true, ".avi": true, ".m4v": true,
}

// DubCmd dubs a single video from the command line, printing progress to
// stdout and the artifact locations on completion.
func DubCmd(env *Env) *cobra.Command {
	var (
		language      string
		subtitlesOnly bool
		outputPath    string
	)

	cmd := &cobra.Command{
		Use:   "dub <video>",
		Short: "Dub one video into the target language",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			inputPath := args[0]

			if err := validateInput(inputPath); err != nil {
				return err
			}
			targetLanguage := lang.Normalize(language)
			if err := lang.Validate(targetLanguage); err != nil {
				return err
			}

			cfg, err := env.LoadConfig()
			if err != nil {
				return err
			}
			log, err := openLogger(cfg)
			if err != nil {
				return err
			}
			defer log.Close()

			app, err := env.NewApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer app.Close()

			mode := job.ModeDub
			if subtitlesOnly {
				mode = job.ModeSubtitle
			}
			j := job.New(filepath.Base(inputPath), inputPath, targetLanguage, mode)
			if err := app.Store.Create(ctx, j); err != nil {
				return err
			}

			events, unsubscribe := app.Hub.Subscribe(j.ID)
			defer unsubscribe()
			done := make(chan struct{})
			go func() {
				defer close(done)
				for ev := range events {
					fmt.Fprintf(env.Stdout, "%-18s %5.1f%%\n", ev.Status, ev.Progress)
					if ev.Status.Terminal() {
						return
					}
				}
			}()

			runErr := app.Run(ctx, j)
			unsubscribe()
			<-done
			if runErr != nil {
				return runErr
			}

			resultPath := localArtifact(app.FilesDir, j.ResultURL)
			if outputPath != "" && resultPath != "" && app.FilesDir != "" {
				if err := os.Rename(resultPath, outputPath); err != nil {
					return fmt.Errorf("move result: %w", err)
				}
				resultPath = outputPath
			}
			if resultPath != "" {
				fmt.Fprintf(env.Stdout, "dubbed video: %s\n", resultPath)
			}
			if j.SubtitlePath != "" {
				fmt.Fprintf(env.Stdout, "subtitles: %s\n", localArtifact(app.FilesDir, j.SubtitlePath))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "", "target language (ISO 639-1, e.g. fr, pt-BR)")
	cmd.Flags().BoolVar(&subtitlesOnly, "subtitles", false, "produce translated subtitles only, skip dubbing")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "move the dubbed video to this path")
	_ = cmd.MarkFlagRequired("language")

	return cmd
}

// validateInput checks the video exists and has a supported container.
func validateInput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrFileNotFound, path)
	}
	ext := strings.ToLower(filepath.Ext(path))
	if !supportedContainers[ext] {
		return fmt.Errorf("%w: %q (accepted: mp4, mkv, webm, mov, avi, m4v)", ErrUnsupportedFormat, ext)
	}
	return nil
}

// localArtifact maps a served /files URL back to its on-disk path. URLs
// from object storage pass through unchanged.
func localArtifact(filesDir, url string) string {
	if filesDir == "" || url == "" {
		return url
	}
	return filepath.Join(filesDir, strings.TrimPrefix(url, "/files/"))
}
