// Command seed generates a synthetic listening-history CSV for local runs.
// It can create a fresh file or append extra rows to an existing one, which
// is handy for exercising the delta monitor.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Default generation constants.
const (
	defaultNumEvents = 2000
	defaultDays      = 30
)

var artists = []string{
	"Arctic Monkeys", "Billie Eilish", "Boards of Canada", "Daft Punk",
	"Fleetwood Mac", "Four Tet", "Khruangbin", "Kendrick Lamar",
	"Little Simz", "Massive Attack", "Nils Frahm", "Parcels",
	"Radiohead", "Sault", "Tame Impala", "The National",
}

var trackWords = []string{
	"Midnight", "Glass", "Harbor", "Signal", "Velvet", "Static",
	"Golden", "Paper", "Neon", "Quiet", "Wires", "Tides",
}

var albums = []string{
	"Night Drive", "Second Nature", "Low Light", "Interiors",
	"Field Notes", "Slow Motion", "",
}

var moods = []string{
	"energetic", "calm", "melancholic", "happy", "intense", "dreamy", "",
}

func main() {
	var (
		outFile   = flag.String("out", "data/scrobbles.csv", "Output CSV path")
		numEvents = flag.Int("events", defaultNumEvents, "Number of listening events to generate")
		days      = flag.Int("days", defaultDays, "Spread events over this many days ending now")
		seed      = flag.Int64("seed", time.Now().UnixNano(), "Random seed (fixed seed gives a reproducible file)")
		appendTo  = flag.Bool("append", false, "Append to an existing file instead of replacing it")
	)
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	if err := run(*outFile, *numEvents, *days, *appendTo, rng); err != nil {
		os.Stderr.WriteString("seed failed: " + err.Error() + "\n")
		os.Exit(1)
	}

	mode := "wrote"
	if *appendTo {
		mode = "appended"
	}
	fmt.Printf("%s %d events to %s\n", mode, *numEvents, *outFile)
}

func run(path string, numEvents, days int, appendTo bool, rng *rand.Rand) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	flags := os.O_CREATE | os.O_WRONLY
	writeHeader := true
	if appendTo {
		flags |= os.O_APPEND
		if st, err := os.Stat(path); err == nil && st.Size() > 0 {
			writeHeader = false
		}
	} else {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write([]string{"timestamp", "artist", "track", "album", "mood"}); err != nil {
			return err
		}
	}

	span := time.Duration(days) * 24 * time.Hour
	start := time.Now().Add(-span)

	// Timestamps walk forward so the file reads like a real export.
	step := span / time.Duration(numEvents+1)
	ts := start
	for i := 0; i < numEvents; i++ {
		ts = ts.Add(step + time.Duration(rng.Int63n(int64(step)+1)))
		artist := artists[rng.Intn(len(artists))]
		track := trackWords[rng.Intn(len(trackWords))] + " " + strconv.Itoa(rng.Intn(40)+1)
		row := []string{
			ts.Format(time.RFC3339),
			artist,
			track,
			albums[rng.Intn(len(albums))],
			moods[rng.Intn(len(moods))],
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
