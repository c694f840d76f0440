package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"

	"github.com/Brownie44l1/leafgrade/internal/batch"
)

var labelColors = map[string]*color.Color{
	"low":    color.New(color.FgRed, color.Bold),
	"medium": color.New(color.FgYellow, color.Bold),
	"high":   color.New(color.FgGreen, color.Bold),
}

type cli struct {
	runner *batch.Runner
	stdout io.Writer
	stderr io.Writer
}

// classify reads every path, prints one line per accepted image and one
// warning per rejection. Images are named by their base name, as uploads are. It returns 1 when a path could not be read or the
// run failed.
func (c *cli) classify(ctx context.Context, paths []string, exportPath string) int {
	code := 0
	uploads := make([]batch.Upload, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			fmt.Fprintf(c.stderr, "%s %s: %v\n", color.RedString("error"), p, err)
			code = 1
			continue
		}
		uploads = append(uploads, batch.Upload{Filename: filepath.Base(p), Data: data})
	}
	if len(uploads) == 0 {
		return 1
	}

	res, err := c.runner.Run(ctx, uploads)
	if res == nil {
		fmt.Fprintf(c.stderr, "%s %v\n", color.RedString("error"), err)
		return 1
	}

	for _, rj := range res.Rejected {
		fmt.Fprintf(c.stderr, "%s %s\n", color.YellowString("skip"), rj.Message)
	}
	for _, it := range res.Items {
		line := batch.ExportLine(it.Filename, it.Label)
		if lc, ok := labelColors[it.Label]; ok {
			line = lc.Sprint(line)
		}
		fmt.Fprintln(c.stdout, line)
	}

	if err != nil {
		fmt.Fprintf(c.stderr, "%s %v\n", color.RedString("error"), err)
		code = 1
	}

	if exportPath != "" {
		if err := os.WriteFile(exportPath, []byte(res.Export()), 0o644); err != nil {
			fmt.Fprintf(c.stderr, "%s write export: %v\n", color.RedString("error"), err)
			return 1
		}
	}
	return code
}
