package main

import (
	"NDT7Spectra/pkg/ndt7"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/schollz/progressbar/v3"
)

func main() {
	app := kingpin.New("ndt7gen", "Generate synthetic NDT7 download records.")
	outputDir := app.Flag("output", "Output directory").Short('o').Default("extracted_json").String()
	count := app.Flag("count", "Number of session files to generate").Short('c').Default("100").Int()
	measurements := app.Flag("measurements", "Measurements per session").Short('n').Default("40").Int()
	rate := app.Flag("rate", "Bottleneck rate in Mbit/s").Default("25").Float64()
	missing := app.Flag("missing", "Probability of dropping an optional field").Default("0.02").Float64()
	seed := app.Flag("seed", "Random seed (0 picks one from the clock)").Int64()
	compress := app.Flag("gzip", "Write .json.gz files").Bool()
	kingpin.MustParse(app.Parse(os.Args[1:]))

	log.SetHandler(cli.Default)

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.WithError(err).Fatal("failed to create output directory")
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	opts := ndt7.DefaultSynthOptions()
	opts.Measurements = *measurements
	opts.BaseRate = *rate * 1e6
	opts.MissingRate = *missing

	ext := ".json"
	if *compress {
		ext = ".json.gz"
	}

	log.Infof("generating %d sessions into %s (seed %d)", *count, *outputDir, *seed)
	bar := progressbar.Default(int64(*count), "generating")
	for i := 0; i < *count; i++ {
		// Spread the sessions over the day.
		opts.Start = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Minute)
		rec := ndt7.Synthesize(rng, opts)
		path := filepath.Join(*outputDir, fmt.Sprintf("ndt7-download-%05d%s", i, ext))
		if err := ndt7.WriteFile(path, rec); err != nil {
			log.WithError(err).Fatal("failed to write session")
		}
		bar.Add(1)
	}
	log.Infof("generated %d sessions", *count)
}
