package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

var batchCommand = &cli.Command{
	Name:      "batch",
	Usage:     "decode many CBOR files concurrently, one Decoder per file",
	ArgsUsage: "<file...>",
	Action: func(c *cli.Context) error {
		paths := c.Args().Slice()
		if len(paths) == 0 {
			return cli.Exit("batch expects at least one file argument", 1)
		}

		results := make([]string, len(paths))
		var g errgroup.Group
		for i, path := range paths {
			i, path := i, path
			g.Go(func() error {
				v, err := decodeFile(path)
				if err != nil {
					results[i] = fmt.Sprintf("%s: ERROR: %v", path, err)
					return err
				}
				results[i] = fmt.Sprintf("%s: ok", path)
				_ = v
				return nil
			})
		}
		batchErr := g.Wait()

		for _, line := range results {
			fmt.Println(line)
		}
		if batchErr != nil {
			return cli.Exit("one or more files failed to decode", 1)
		}
		return nil
	},
}
