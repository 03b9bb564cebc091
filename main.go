// entry point

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/nullbyte-dev/cpmhost/console"
	"github.com/nullbyte-dev/cpmhost/cpm"
	"github.com/nullbyte-dev/cpmhost/drives"
	"github.com/nullbyte-dev/cpmhost/memory"
	"github.com/nullbyte-dev/cpmhost/sink"
	"github.com/nullbyte-dev/cpmhost/termkbd"
)

func main() {
	drive := flag.String("drive", ".", "host directory to map as drive A:")
	dumpAssembly := flag.Bool("dump-assembly", false, "log the address and opcode of every dispatched breakpoint")
	logFile := flag.String("log", "", "append structured logs to this file instead of discarding output")
	printerFile := flag.String("printer", "", "append BDOS LIST output to this file instead of discarding it")
	debug := flag.Bool("debug", false, "raise the log level to debug")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: cpmulator [-drive DIR] [-dump-assembly] [-log FILE] [-printer FILE] [-debug] PROGRAM.COM [ARGS...]")
		os.Exit(1)
	}

	logSink, err := openSink(*logFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening log file: %s\n", err)
		os.Exit(1)
	}
	defer logSink.Close()

	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelWarn)
	if *debug || *dumpAssembly || os.Getenv("DEBUG") != "" {
		lvl.Set(slog.LevelDebug)
	}
	logger := slog.New(slog.NewJSONHandler(sink.Writer{Sink: logSink}, &slog.HandlerOptions{Level: lvl}))

	printer, err := openSink(*printerFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening printer file: %s\n", err)
		os.Exit(1)
	}
	defer printer.Close()

	dr := drives.New()
	dr.Set(0, *drive)

	con := console.NewChannel()
	mem := new(memory.Memory)

	c := cpm.New(logger, mem, dr, con, printer)
	c.DumpAssembly = *dumpAssembly

	kbd := termkbd.New(con)
	kbd.OnInterrupt = func() {
		kbd.TearDown()
		logSink.Close()
		printer.Close()
		os.Exit(0)
	}
	if err := kbd.Setup(); err != nil {
		fmt.Fprintf(os.Stderr, "setting up keyboard: %s\n", err)
		os.Exit(1)
	}
	defer kbd.TearDown()

	err = c.Execute(context.Background(), flag.Arg(0), flag.Args()[1:])
	if err != nil && !errors.Is(err, cpm.ErrExit) && !errors.Is(err, cpm.ErrHalt) {
		kbd.TearDown()
		fmt.Fprintf(os.Stderr, "running %s: %s\n", flag.Arg(0), err)
		os.Exit(1)
	}
}

// openSink returns sink.Null{} for an empty name, otherwise a file sink
// appending to name.
func openSink(name string) (sink.Sink, error) {
	if name == "" {
		return sink.Null{}, nil
	}
	return sink.NewFile(name)
}
