package main

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fileforgehq/fileforge/internal/batch"
)

// Version information - set during build time via ldflags
var (
	version   = "dev"
	gitCommit = "none"
)

var (
	serverURL    string
	outputFormat string
	toolName     string
	pollInterval time.Duration
	maxPolls     int
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "forgectl",
	Short: "Batch file conversion client for the fileforge service",
	Long: `forgectl submits files to a running fileforge server and waits for each
conversion to finish, one file at a time.

Examples:
  forgectl convert --server http://localhost:8080 --to mp3 --tool audio a.wav b.wav
  forgectl convert --server http://localhost:8080 --to webp --tool image photo.png
  forgectl convert --to mp4 --tool video --interval 5s --max-polls 60 clip.avi`,
}

var convertCmd = &cobra.Command{
	Use:   "convert [files...]",
	Short: "Convert files sequentially, polling each job to completion",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		endpoint, err := endpointFor(toolName)
		if err != nil {
			log.Fatalf("Error: %v", err)
		}

		runner := &batch.Runner{
			BaseURL:      strings.TrimRight(serverURL, "/"),
			Endpoint:     endpoint,
			PollInterval: pollInterval,
			MaxPolls:     maxPolls,
		}
		if verbose {
			runner.Logf = log.Printf
		}

		items := make([]batch.Item, 0, len(args))
		for _, path := range args {
			items = append(items, batch.Item{Path: path, OutputFormat: outputFormat})
		}

		results := runner.Run(cmd.Context(), items)

		failed := 0
		for _, res := range results {
			if res.Err != nil {
				failed++
				fmt.Printf("✗ %s: %v\n", res.Path, res.Err)
				continue
			}
			fmt.Printf("✓ %s → job %s (%s)", res.Path, res.JobID, res.Status)
			if res.DownloadURL != "" {
				fmt.Printf(" %s%s", runner.BaseURL, res.DownloadURL)
			}
			fmt.Println()
		}

		fmt.Printf("\n%d/%d converted\n", len(results)-failed, len(results))
		if failed > 0 {
			os.Exit(1)
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("forgectl %s (%s)\n", version, gitCommit)
		fmt.Printf("  Go:      %s\n", runtime.Version())
		fmt.Printf("  OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

func endpointFor(tool string) (string, error) {
	switch tool {
	case "audio", "video", "image":
		return "/api/" + tool + "/convert/", nil
	default:
		return "", fmt.Errorf("unknown tool %q (expected audio, video or image)", tool)
	}
}

func init() {
	convertCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080",
		"Base URL of the fileforge server")
	convertCmd.Flags().StringVar(&outputFormat, "to", "",
		"Target format (e.g. mp3, mp4, webp)")
	convertCmd.Flags().StringVar(&toolName, "tool", "audio",
		"Conversion tool: audio, video or image")
	convertCmd.Flags().DurationVar(&pollInterval, "interval", 2*time.Second,
		"Delay between job status polls")
	convertCmd.Flags().IntVar(&maxPolls, "max-polls", 150,
		"Give up on a job after this many polls")
	convertCmd.Flags().BoolVarP(&verbose, "verbose", "v", false,
		"Log submit and poll attempts")
	convertCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
