package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/mattn/go-isatty"

	"metatracker/client"
	"metatracker/torrent"
)

type options struct {
	path     string
	port     int
	timeout  time.Duration
	announce bool
	dht      bool
	numWant  int
	progress bool
	debug    bool
}

// parseFlags reads the command line. Defaults come from the environment:
//   - METATRACKER__PORT: port announced to trackers (must be > 0)
//   - METATRACKER__TIMEOUT: per-tracker timeout, a Go duration
//   - DEBUG: enables debug logs if set
func parseFlags(args []string, stderr io.Writer) (options, error) {
	defaultPort := int(client.DefaultConfig.Port)
	if p, err := strconv.Atoi(os.Getenv("METATRACKER__PORT")); err == nil && p > 0 && p <= 65535 {
		defaultPort = p
	}

	defaultTimeout := client.DefaultConfig.Timeout
	if d, err := time.ParseDuration(os.Getenv("METATRACKER__TIMEOUT")); err == nil && d > 0 {
		defaultTimeout = d
	}

	debugDefault := os.Getenv("DEBUG") != ""
	progressDefault := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	var opts options
	fs := flag.NewFlagSet("metatracker", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.IntVar(&opts.port, "port", defaultPort, "port announced to trackers [env METATRACKER__PORT]")
	fs.IntVar(&opts.port, "p", defaultPort, "alias to -port")
	fs.DurationVar(&opts.timeout, "timeout", defaultTimeout, "timeout of each tracker exchange [env METATRACKER__TIMEOUT]")
	fs.BoolVar(&opts.announce, "announce", false, "announce to every tracker and print the peers")
	fs.BoolVar(&opts.announce, "a", false, "alias to -announce")
	fs.BoolVar(&opts.dht, "dht", false, "look up peers on the mainline DHT")
	fs.IntVar(&opts.numWant, "numwant", client.DefaultConfig.NumWant, "peers to ask each tracker for")
	fs.BoolVar(&opts.progress, "progress", progressDefault, "show announce progress")
	fs.BoolVar(&opts.debug, "debug", debugDefault, "enable debug logs [env DEBUG]")
	fs.BoolVar(&opts.debug, "d", debugDefault, "alias to -debug")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "\nUsage: metatracker [flags] <file.torrent>\n\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\n")
	}

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return opts, errors.New("expected exactly one torrent file")
	}
	if opts.port <= 0 || opts.port > 65535 {
		return opts, fmt.Errorf("invalid port %d", opts.port)
	}
	opts.path = fs.Arg(0)
	return opts, nil
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func printDescriptor(w io.Writer, d *torrent.Descriptor) {
	fmt.Fprintf(w, "name:         %s\n", d.Name)
	fmt.Fprintf(w, "info hash:    %x\n", d.InfoHash)
	fmt.Fprintf(w, "length:       %d\n", d.Length)
	fmt.Fprintf(w, "pieces:       %d x %d\n", d.NumPieces(), d.PieceLength)
	if d.Private {
		fmt.Fprintf(w, "private:      yes\n")
	}
	if d.Comment != "" {
		fmt.Fprintf(w, "comment:      %s\n", d.Comment)
	}
	if d.CreatedBy != "" {
		fmt.Fprintf(w, "created by:   %s\n", d.CreatedBy)
	}
	if !d.CreationDate.IsZero() {
		fmt.Fprintf(w, "created:      %s\n", d.CreationDate.UTC().Format(time.RFC3339))
	}
	for _, tracker := range d.Trackers() {
		fmt.Fprintf(w, "tracker:      %s\n", tracker)
	}
	if d.IsMultiFile() {
		for i, path := range d.FilePaths() {
			fmt.Fprintf(w, "file:         %s (%d)\n", path, d.Files[i].Length)
		}
	}
}

func run(ctx context.Context, opts options, stdout io.Writer) error {
	d, err := torrent.Open(opts.path)
	if err != nil {
		return err
	}
	printDescriptor(stdout, d)

	if !opts.announce && !opts.dht {
		return nil
	}

	c, err := client.New(client.Config{
		Port:         uint16(opts.port),
		Timeout:      opts.timeout,
		UseTrackers:  opts.announce,
		UseDHT:       opts.dht,
		ShowProgress: opts.progress,
		NumWant:      opts.numWant,
		Logger:       newLogger(opts.debug),
	}, nil)
	if err != nil {
		return err
	}

	if opts.announce {
		results, err := c.AnnounceEach(ctx, d)
		for _, r := range results {
			if r.Err != nil {
				fmt.Fprintf(stdout, "%s: %v\n", r.Tracker, r.Err)
				continue
			}
			fmt.Fprintf(stdout, "%s: interval %ds, %d peers\n", r.Tracker, r.Response.Interval, len(r.Response.Peers))
			if r.Response.Warning != "" {
				fmt.Fprintf(stdout, "  warning: %s\n", r.Response.Warning)
			}
			for _, p := range r.Response.Peers {
				fmt.Fprintf(stdout, "  %s\n", p)
			}
		}
		if err != nil {
			return err
		}
	}

	if opts.dht {
		dhtCtx, cancel := context.WithTimeout(ctx, opts.timeout)
		defer cancel()
		peers, err := c.DiscoverDHT(dhtCtx, d, opts.numWant)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "dht: %d peers\n", len(peers))
		for _, p := range peers {
			fmt.Fprintf(stdout, "  %s\n", p)
		}
	}
	return nil
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		log.Fatal(err)
	}
}
