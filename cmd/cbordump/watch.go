package main

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/urfave/cli/v2"
)

var watchCommand = &cli.Command{
	Name:      "watch",
	Usage:     "re-decode a file and print it every time it changes",
	ArgsUsage: "<file>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return cli.Exit("watch expects exactly one file argument", 1)
		}
		path := c.Args().First()

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("starting watcher: %w", err)
		}
		defer watcher.Close()

		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}

		if v, err := decodeFile(path); err != nil {
			log.Errorf("%v", err)
		} else {
			fmt.Println(render(v, 0))
		}

		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				v, err := decodeFile(path)
				if err != nil {
					log.Errorf("%v", err)
					continue
				}
				fmt.Println(render(v, 0))
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				log.Errorf("watch error: %v", err)
			}
		}
	},
}
