// Command cbordump decodes CBOR documents and prints the resulting value
// tree. It exists to exercise the cbor package end to end and to give a
// concrete caller to the logging, concurrency and file-watching dependencies
// that the library itself has no reason to import.
package main

import (
	"fmt"
	"os"

	"github.com/op/go-logging"
	"github.com/urfave/cli/v2"
)

var log = logging.MustGetLogger("cbordump")

func main() {
	app := cli.NewApp()
	app.Name = "cbordump"
	app.Usage = "decode and inspect CBOR documents"
	app.Flags = []cli.Flag{
		&cli.BoolFlag{Name: "verbose", Usage: "log decode lifecycle events"},
		&cli.BoolFlag{Name: "debug", Usage: "log tag dispatch as well as lifecycle events"},
	}
	app.Commands = []*cli.Command{
		decodeCommand,
		batchCommand,
		watchCommand,
	}
	app.Before = func(c *cli.Context) error {
		configureLogging(c.Bool("verbose"), c.Bool("debug"))
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func configureLogging(verbose, debug bool) {
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	formatted := logging.NewBackendFormatter(backend, logging.MustStringFormatter(
		`%{time:15:04:05.000} %{level:.4s} %{message}`,
	))
	level := logging.NOTICE
	switch {
	case debug:
		level = logging.DEBUG
	case verbose:
		level = logging.INFO
	}
	leveled := logging.AddModuleLevel(formatted)
	leveled.SetLevel(level, "")
	logging.SetBackend(leveled)
}
