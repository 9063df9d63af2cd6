package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rewired-gh/quakewatch/internal/storage"
)

const usage = `usage: quakectl copy -from-driver sqlite -from ./data/old.db -to-driver postgres -to "postgres://..."

Copies every event record from one store into another. Records whose quake id
already exists in the target are skipped, never overwritten.`

func main() {
	if len(os.Args) < 2 || os.Args[1] != "copy" {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	fs := flag.NewFlagSet("copy", flag.ExitOnError)
	fromDriver := fs.String("from-driver", "sqlite", "source driver: sqlite, postgres, textlog")
	from := fs.String("from", "", "source db path, dsn or textlog directory")
	toDriver := fs.String("to-driver", "sqlite", "target driver: sqlite, postgres, textlog")
	to := fs.String("to", "", "target db path, dsn or textlog directory")
	_ = fs.Parse(os.Args[2:])

	if *from == "" || *to == "" {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	src, err := storage.Open(options(*fromDriver, *from))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open source: %v\n", err)
		os.Exit(1)
	}
	defer src.Close()

	dst, err := storage.Open(options(*toDriver, *to))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open target: %v\n", err)
		os.Exit(1)
	}
	defer dst.Close()

	copied, skipped, err := storage.Copy(context.Background(), src, dst)
	fmt.Printf("copied %d records, skipped %d already present\n", copied, skipped)
	if err != nil {
		fmt.Fprintf(os.Stderr, "copy stopped: %v\n", err)
		src.Close()
		dst.Close()
		os.Exit(1)
	}
}

func options(driver, target string) storage.Options {
	opts := storage.Options{Driver: driver}
	switch driver {
	case "postgres":
		opts.DSN = target
	case "textlog":
		opts.TextLogDir = target
	default:
		opts.DBPath = target
	}
	return opts
}
