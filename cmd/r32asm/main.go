// Command r32asm assembles R32 source into a program image.
//
// Usage:
//
//	r32asm [-o out.img] [-l] <source.s>
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/r32sim/asm"
	"github.com/sarchlab/r32sim/insts"
	"github.com/sarchlab/r32sim/loader"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("r32asm", flag.ContinueOnError)
	fs.SetOutput(stderr)

	output := fs.String("o", "", "Output image path (default: source name with .img)")
	listing := fs.Bool("l", false, "Print a listing of the assembled words")
	verbose := fs.Bool("v", false, "Verbose output")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: r32asm [options] <source.s>\n")
		fmt.Fprintf(stderr, "\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	log := logrus.New()
	log.SetOutput(stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	src := fs.Arg(0)
	out := *output
	if out == "" {
		out = strings.TrimSuffix(src, filepath.Ext(src)) + ".img"
	}

	f, err := os.Open(src)
	if err != nil {
		log.WithError(err).Error("failed to open source")
		return 1
	}
	defer func() { _ = f.Close() }()

	a := asm.NewAssembler()
	words, err := a.Assemble(f)
	if err != nil {
		log.WithError(err).WithField("file", src).Error("assembly failed")
		return 1
	}

	if err := loader.WriteImage(out, words); err != nil {
		log.WithError(err).Error("failed to write image")
		return 1
	}

	log.WithFields(logrus.Fields{
		"words":  len(words),
		"labels": len(a.Labels()),
		"output": out,
	}).Debug("assembled")

	if *listing {
		for i, w := range words {
			fmt.Fprintf(stdout, "%08X: %08X  %s\n", i*4, w, insts.Disassemble(w))
		}
	}

	return 0
}
