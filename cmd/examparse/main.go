package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"exam-parser/internal/config"
	"exam-parser/internal/domain"
	"exam-parser/internal/service"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: .env file could not be loaded: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Results go to stdout; logs stay on stderr.
	container := config.NewContainerWithLogOutput(os.Stderr)

	app := &cli.App{
		Name:  "examparse",
		Usage: "Turn exam page images and PDFs into structured question JSON",
		// Exit codes are resolved by run.
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			parseCommand(container),
			batchCommand(container),
			labelCommand(container),
			publishCommand(container),
			renameCommand(container),
			submitCommand(container),
		},
	}

	if code := run(ctx, app, container); code != 0 {
		stop()
		os.Exit(code)
	}
}

func run(ctx context.Context, app *cli.App, container *config.Container) int {
	defer func() {
		if err := container.Close(); err != nil {
			container.Logger.Error("Failed to stop recognition engine", err)
		}
	}()

	err := app.RunContext(ctx, os.Args)
	if err == nil {
		return 0
	}
	var exit cli.ExitCoder
	if errors.As(err, &exit) {
		fmt.Fprintln(os.Stderr, exit.Error())
		return exit.ExitCode()
	}
	container.Logger.Error("Command failed", err)
	return 1
}

func parseCommand(c *config.Container) *cli.Command {
	return &cli.Command{
		Name:  "parse",
		Usage: "Run the full pipeline over images, one PDF, or a directory of images",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    "Input image, PDF or directory (repeatable)",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   "./output",
				Usage:   "Root of the per-run working directory, removed after the run",
			},
		},
		Action: func(cctx *cli.Context) error {
			pipeline, err := c.BuildPipeline()
			if err != nil {
				return err
			}
			inputs := cctx.StringSlice("input")
			result, err := service.RunInWorkDir(cctx.Context, c.Fs, pipeline, inputs, cctx.String("output"), c.Logger)
			if err != nil {
				return err
			}
			for _, w := range result.Warnings {
				c.Logger.Warn("Input warning", "warning", w)
			}

			if path := service.ResultPath(c.Fs, inputs); path != "" {
				if err := service.SaveResult(c.Fs, path, result.JSON); err != nil {
					return err
				}
				c.Logger.Info("Result saved", "path", path)
			}
			fmt.Fprintln(cctx.App.Writer, result.JSON)
			return nil
		},
	}
}

func batchCommand(c *config.Container) *cli.Command {
	return &cli.Command{
		Name:      "batch",
		Usage:     "Parse every image in a directory, writing one JSON file per image",
		ArgsUsage: "<dir|image>",
		Action: func(cctx *cli.Context) error {
			target := cctx.Args().First()
			if target == "" {
				return cli.Exit("a directory or image path is required", 2)
			}
			processor, err := c.BuildBatchProcessor()
			if err != nil {
				return err
			}

			if domain.IsImagePath(target) {
				out, err := processor.ProcessImage(cctx.Context, target)
				if err != nil {
					return err
				}
				fmt.Fprintln(cctx.App.Writer, out)
				return nil
			}

			report, err := processor.ProcessDir(cctx.Context, target)
			if err != nil {
				return err
			}
			return printReport(cctx, report)
		},
	}
}

func labelCommand(c *config.Container) *cli.Command {
	return &cli.Command{
		Name:      "label",
		Usage:     "Stamp grade, volume, chapter, section and subject from the directory path onto question files",
		ArgsUsage: "<path>...",
		Action: func(cctx *cli.Context) error {
			if cctx.NArg() == 0 {
				return cli.Exit("at least one JSON file or directory is required", 2)
			}
			labeler := service.NewMetadataLabeler(c.Fs, c.Logger)
			var failed bool
			for _, path := range cctx.Args().Slice() {
				n, err := labeler.LabelPath(path)
				if err != nil {
					c.Logger.Error("Labeling failed", err, "path", path)
					failed = true
				}
				fmt.Fprintf(cctx.App.Writer, "%s: %d file(s) labeled\n", path, n)
			}
			if failed {
				return cli.Exit("some files could not be labeled", 1)
			}
			return nil
		},
	}
}

func publishCommand(c *config.Container) *cli.Command {
	return &cli.Command{
		Name:      "publish",
		Usage:     "Upload inlined base64 images to object storage and replace them with public URLs",
		ArgsUsage: "<input> <output>",
		Action: func(cctx *cli.Context) error {
			if cctx.NArg() != 2 {
				return cli.Exit("input and output paths are required", 2)
			}
			publisher, err := c.BuildPublisher()
			if err != nil {
				return err
			}
			stats, err := publisher.PublishPath(cctx.Context, cctx.Args().Get(0), cctx.Args().Get(1))
			if err != nil {
				return err
			}
			fmt.Fprintf(cctx.App.Writer, "files: %d, uploaded: %d, reused: %d, failed: %d\n",
				stats.Files, stats.Uploaded, stats.Reused, stats.Failed)
			return nil
		},
	}
}

func renameCommand(c *config.Container) *cli.Command {
	defaults := service.DefaultRenameOptions()
	return &cli.Command{
		Name:      "rename",
		Usage:     "Rename the images in a directory to a numbered sequence",
		ArgsUsage: "<dir>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "prefix", Value: defaults.Prefix, Usage: "File name prefix"},
			&cli.IntFlag{Name: "start", Value: defaults.Start, Usage: "First sequence number"},
			&cli.IntFlag{Name: "digits", Value: defaults.Digits, Usage: "Zero padded width of the number"},
		},
		Action: func(cctx *cli.Context) error {
			dir := cctx.Args().First()
			if dir == "" {
				return cli.Exit("a directory is required", 2)
			}
			n, err := service.NewImageRenamer(c.Fs, c.Logger).Rename(dir, service.RenameOptions{
				Prefix: cctx.String("prefix"),
				Start:  cctx.Int("start"),
				Digits: cctx.Int("digits"),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cctx.App.Writer, "%d image(s) renamed\n", n)
			return nil
		},
	}
}

func submitCommand(c *config.Container) *cli.Command {
	return &cli.Command{
		Name:      "submit",
		Usage:     "Send every image in a directory to a running server and save the responses",
		ArgsUsage: "<dir>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Value:   "http://localhost:" + c.Config.GetServerPort(),
				Usage:   "Base URL of the parse server",
				EnvVars: []string{"EXAMPARSE_SERVER_URL"},
			},
		},
		Action: func(cctx *cli.Context) error {
			dir := cctx.Args().First()
			if dir == "" {
				return cli.Exit("a directory is required", 2)
			}
			report, err := service.NewSubmitter(c.Fs, cctx.String("url"), c.Logger).SubmitDir(cctx.Context, dir)
			if err != nil {
				return err
			}
			return printReport(cctx, report)
		},
	}
}

func printReport(cctx *cli.Context, report *service.BatchReport) error {
	for _, path := range report.Saved {
		fmt.Fprintf(cctx.App.Writer, "saved %s\n", path)
	}
	failed := make([]string, 0, len(report.Failed))
	for path := range report.Failed {
		failed = append(failed, path)
	}
	sort.Strings(failed)
	for _, path := range failed {
		fmt.Fprintf(cctx.App.ErrWriter, "failed %s: %v\n", path, report.Failed[path])
	}
	if len(failed) > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d item(s) failed", len(failed), len(failed)+len(report.Saved)), 1)
	}
	return nil
}
