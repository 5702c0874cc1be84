// Command exfs attaches an exfs image and builds the operation dispatch
// table the kernel bridge serves callbacks from. Run standalone it mounts
// the image, optionally verifies its consistency, reports the file system
// statistics, and detaches cleanly; init failures exit nonzero with a
// diagnostic.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/dargueta/extentfs/driver"
	"github.com/dargueta/extentfs/file_systems/exfs"
	"github.com/dargueta/extentfs/imagefile"
)

func main() {
	app := &cli.App{
		Name:      "exfs",
		Usage:     "Mount an exfs disk image",
		ArgsUsage: "IMAGE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "image",
				Usage: "path to the image file (alternative to the positional argument)",
			},
			&cli.BoolFlag{
				Name:  "read-only",
				Usage: "reject all mutating operations",
			},
			&cli.BoolFlag{
				Name:  "check",
				Usage: "verify the image's consistency before serving operations",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "logging verbosity (trace, debug, info, warn, error)",
			},
		},
		Action: run,
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	level, err := logrus.ParseLevel(ctx.String("log-level"))
	if err != nil {
		return err
	}
	logrus.SetLevel(level)

	path := ctx.String("image")
	if path == "" {
		path = ctx.Args().First()
	}
	if path == "" {
		cli.ShowAppHelp(ctx)
		return fmt.Errorf("missing image path")
	}

	image, err := imagefile.Open(path, exfs.BlockSize)
	if err != nil {
		return fmt.Errorf("failed to mount the file system: %w", err)
	}

	dispatcher, err := driver.Mount(image, driver.Options{
		ReadOnly: ctx.Bool("read-only"),
		Check:    ctx.Bool("check"),
	})
	if err != nil {
		image.Close()
		return fmt.Errorf("failed to mount the file system: %w", err)
	}

	// The bridge takes over from here: it installs its callbacks from the
	// operation table and drives them until unmount.
	ops := dispatcher.Operations()

	stat := ops.Statfs()
	fmt.Printf("blocks: %d total, %d free\n", stat.TotalBlocks, stat.BlocksFree)
	fmt.Printf("inodes: %d total, %d free\n", stat.Files, stat.FilesFree)

	return ops.Destroy()
}
