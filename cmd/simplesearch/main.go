// Command simplesearch runs one query against a database and prints the
// ranked matches.
//
//	simplesearch [flags] DB_PATH QUERY...
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Ranked-Query-Engine/pkg/search"
)

type options struct {
	offset    int
	limit     int
	flags     string
	stopwords string
	boostSlot int
	boost     string
	timeout   time.Duration
}

func main() {
	var opts options
	flag.IntVar(&opts.offset, "offset", 0, "rank of the first match to print")
	flag.IntVar(&opts.limit, "limit", 10, "number of matches to print")
	flag.StringVar(&opts.flags, "flags", "default", "comma-separated parser features")
	flag.StringVar(&opts.stopwords, "stop", "", "comma-separated stopwords")
	flag.IntVar(&opts.boostSlot, "boost-slot", -1, "value slot whose values boost matching documents")
	flag.StringVar(&opts.boost, "boost", "identity", "transform applied to boost slot values")
	flag.DurationVar(&opts.timeout, "timeout", 30*time.Second, "evaluation timeout")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] DB_PATH QUERY...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 2 {
		flag.Usage()
		os.Exit(1)
	}
	logger.Setup(os.Stderr, *logLevel, "text")

	if err := run(os.Stdout, flag.Arg(0), strings.Join(flag.Args()[1:], " "), opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(w io.Writer, dbPath, text string, opts options) error {
	db, err := search.Open(dbPath)
	if err != nil {
		return fmt.Errorf("unable to open database at '%s': %w", dbPath, err)
	}
	defer db.Close()

	fmt.Fprintf(w, "Querying database at '%s' with '%s'\n", dbPath, text)

	flags, err := search.ParseFlags(strings.Split(opts.flags, ",")...)
	if err != nil {
		return err
	}
	var stop search.StopwordFilter
	if opts.stopwords != "" {
		stop = search.NewStopper(strings.Split(opts.stopwords, ",")...).Freeze()
	}

	q, err := db.ParseQuery(text, flags, stop)
	if err != nil {
		return fmt.Errorf("unable to parse query '%s': %w", text, err)
	}
	if opts.boostSlot >= 0 {
		t, err := search.ParseTransform(opts.boost)
		if err != nil {
			return err
		}
		q = search.AndMaybe(q, search.Source(search.Wrap(uint32(opts.boostSlot), search.WithTransform(t))))
	}
	fmt.Fprintf(w, "Parsed query: '%s'\n", search.Description(q))

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()
	matches, err := db.Evaluate(ctx, q, opts.offset, opts.limit)
	if err != nil {
		return fmt.Errorf("unable to retrieve matches: %w", err)
	}

	fmt.Fprintf(w, "%d results found.\n", matches.SizeEstimate())
	fmt.Fprintf(w, "Matches %d-%d:\n\n", matches.FirstItem()+1, matches.FirstItem()+matches.Size())
	for it := matches.Iterator(); it.Next(); {
		m, err := it.Match()
		if err != nil {
			return err
		}
		data, err := m.Payload()
		if err != nil {
			fmt.Fprintf(os.Stderr, "unable to retrieve document %d: %v\n", m.DocID(), err)
			continue
		}
		fmt.Fprintf(w, "%d: %.3f docid=%d [%s]\n", m.Rank()+1, m.Weight(), m.DocID(), data)
	}
	return nil
}
