// Command mkfs formats a disk image file into an exfs file system.
//
// The image file must exist and have a size that is a multiple of the block
// size, or be created in place with --size or --preset.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/dargueta/extentfs/disks"
	"github.com/dargueta/extentfs/file_systems/exfs"
	"github.com/dargueta/extentfs/imagefile"
)

func main() {
	app := &cli.App{
		Name:      "mkfs",
		Usage:     "Format an image file into an exfs file system",
		ArgsUsage: "IMAGE",
		Flags: []cli.Flag{
			&cli.UintFlag{
				Name:     "inodes",
				Aliases:  []string{"i"},
				Usage:    "number of inodes to provision; required",
				Required: true,
			},
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"f"},
				Usage:   "overwrite an existing file system on the image",
			},
			&cli.BoolFlag{
				Name:    "zero",
				Aliases: []string{"z"},
				Usage:   "zero out the image contents before formatting",
			},
			&cli.Int64Flag{
				Name:  "size",
				Usage: "create the image file with this size in bytes if it is missing",
			},
			&cli.StringFlag{
				Name:    "preset",
				Aliases: []string{"p"},
				Usage: fmt.Sprintf(
					"create a missing image file using a predefined size; one of: %v",
					disks.PresetSlugs()),
			},
		},
		Action: formatImage,
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func formatImage(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		cli.ShowAppHelp(ctx)
		return fmt.Errorf("missing image path")
	}
	path := ctx.Args().First()

	inodes := ctx.Uint("inodes")
	if inodes == 0 {
		return fmt.Errorf("number of inodes must be positive")
	}

	err := ensureImageExists(ctx, path)
	if err != nil {
		return err
	}

	image, err := imagefile.Open(path, exfs.BlockSize)
	if err != nil {
		return err
	}
	defer image.Close()

	err = exfs.Format(image.Data(), exfs.FormatOptions{
		InodeCount: uint32(inodes),
		Force:      ctx.Bool("force"),
		Zero:       ctx.Bool("zero"),
	})
	if err != nil {
		return fmt.Errorf("failed to format the image: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"image":  path,
		"inodes": inodes,
	}).Info("image formatted")
	return nil
}

// ensureImageExists creates the image file when it's missing and the user
// provided a size or preset to create it with.
func ensureImageExists(ctx *cli.Context, path string) error {
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return err
	}

	size := ctx.Int64("size")
	if slug := ctx.String("preset"); slug != "" {
		preset, err := disks.GetImagePreset(slug)
		if err != nil {
			return err
		}
		size = preset.SizeBytes
	}
	if size == 0 {
		return fmt.Errorf(
			"image %q does not exist; pass --size or --preset to create it", path)
	}
	if size%exfs.BlockSize != 0 {
		return fmt.Errorf(
			"image size %d is not a multiple of the block size (%d)",
			size, exfs.BlockSize)
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return file.Truncate(size)
}
