// Command redirects collects the go:redirect-from directives in the kernel
// sources and patches the resolved symbol addresses into the redirect table
// of a linked kernel image. The rt0 code uses the table to route calls to
// runtime.gopanic and runtime.throw into kfmt.
//
// Usage (from the module root):
//
//	redirects count
//	redirects populate-table build/kernel.bin
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
)

var kernelDir = flag.String("dir", "kernel", "directory scanned for redirect directives")

func main() {
	flag.Parse()
	log.SetFlags(0)
	log.SetPrefix("[redirects] ")

	if err := run(flag.Args()); err != nil {
		log.Fatalf("error: %v", err)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return errors.New("missing command")
	}

	var imgFile string
	switch args[0] {
	case "count":
	case "populate-table":
		if len(args) != 2 {
			return errors.New("populate-table requires the path to the kernel image as an argument")
		}
		imgFile = args[1]
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}

	modPath, err := modulePath(".")
	if err != nil {
		return err
	}

	goFiles, err := collectGoFiles(*kernelDir)
	if err != nil {
		return err
	}

	redirects, err := findRedirects(".", modPath, goFiles)
	if err != nil {
		return err
	}

	if imgFile == "" {
		fmt.Printf("%d", len(redirects))
		return nil
	}

	return populateTable(redirects, imgFile)
}
