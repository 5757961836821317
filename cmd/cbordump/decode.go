package main

import (
	"fmt"
	"os"

	"github.com/dolfandringa/cbor2"
	"github.com/urfave/cli/v2"
)

var decodeCommand = &cli.Command{
	Name:      "decode",
	Usage:     "decode a single CBOR file and print its value tree",
	ArgsUsage: "<file>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.Exit("decode expects exactly one file argument", 1)
		}
		v, err := decodeFile(c.Args().First())
		if err != nil {
			return err
		}
		fmt.Println(render(v, 0))
		return nil
	},
}

func decodeFile(path string) (any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	log.Infof("decoding %s", path)
	handler := cbor.NewTagHandler()
	dec, err := cbor.NewDecoder(f, cbor.WithTagHook(func(d *cbor.Decoder, tag *cbor.Tag) (any, error) {
		log.Debugf("%s: dispatching tag %d", path, tag.Number)
		return handler.Handle(d, tag)
	}))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	v, err := dec.Decode()
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	log.Debugf("%s: %d bytes remaining after top-level value", path, dec.BytesRemaining())
	return v, nil
}
