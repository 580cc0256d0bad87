package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/rubu/stream-timestamp-analyzer/internal"
)

var usg = `Usage of %s:

%s lists the H.264 NAL units of a transport stream with timestamps, rai and
SEI messages, including picture timing clock timestamps.
`

func parseOptions() internal.Options {
	opts := internal.Options{ShowNALU: true, ShowStatistics: true}
	flag.IntVar(&opts.MaxNrPictures, "max", 0, "max nr pictures to parse")
	flag.BoolVar(&opts.ShowSEIDetails, "sei", false, "print sei message details")
	flag.BoolVar(&opts.Indent, "indent", false, "indent JSON output")
	flag.BoolVar(&opts.Version, "version", false, "print version")

	flag.Usage = func() {
		parts := strings.Split(os.Args[0], "/")
		name := parts[len(parts)-1]
		fmt.Fprintf(os.Stderr, usg, name, name)
		fmt.Fprintf(os.Stderr, "\nRun as: %s [options] file.ts (- for stdin) with options:\n\n", name)
		flag.PrintDefaults()
	}

	flag.Parse()
	return opts
}

func main() {
	o, args := internal.ParseParams("nal-lister", parseOptions)
	err := internal.Execute(os.Stdout, o, args[0], internal.ListNALUs)
	if err != nil {
		log.Fatal(err)
	}
}
