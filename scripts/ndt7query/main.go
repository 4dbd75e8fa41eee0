package main

import (
	"NDT7Spectra/internal/config"
	"NDT7Spectra/internal/query"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
)

func main() {
	app := kingpin.New("ndt7query", "Query stored feature datasets through the API or directly in ClickHouse.")
	mode := app.Flag("mode", "api to go through the HTTP API, direct to query ClickHouse").Default("api").Enum("api", "direct")
	apiURL := app.Flag("api", "Base URL of ndt7-api").Default("http://localhost:8080").String()
	chHost := app.Flag("ch-host", "ClickHouse host").Default("localhost").String()
	chPort := app.Flag("ch-port", "ClickHouse native port").Default("9000").Int()
	chUser := app.Flag("ch-user", "ClickHouse user").Default("default").String()
	chPassword := app.Flag("ch-password", "ClickHouse password").String()
	dataset := app.Arg("dataset", "Dataset name; all datasets are listed when empty").String()
	kingpin.MustParse(app.Parse(os.Args[1:]))

	log.SetHandler(cli.Default)
	log.Infof("running in '%s' mode", *mode)

	switch *mode {
	case "api":
		queryViaAPI(*apiURL, *dataset)
	case "direct":
		directQuery(config.ClickHouseConfig{
			Host:     *chHost,
			Port:     *chPort,
			Database: "default",
			Username: *chUser,
			Password: *chPassword,
		}, *dataset)
	}
}

func queryViaAPI(baseURL, dataset string) {
	url := baseURL + "/api/v1/datasets"
	if dataset != "" {
		url += "/" + dataset
	}

	resp, err := http.Get(url)
	if err != nil {
		log.WithError(err).Fatal("error sending request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.WithError(err).Fatal("error reading response body")
	}
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("API returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		log.Warn("could not prettify JSON, printing raw response")
		fmt.Println(string(body))
		return
	}
	fmt.Println(pretty.String())
}

func directQuery(cfg config.ClickHouseConfig, dataset string) {
	q, err := query.NewClickHouseQuerier(cfg)
	if err != nil {
		log.WithError(err).Fatal("error connecting to ClickHouse")
	}
	ctx := context.Background()

	var stats []query.DatasetStats
	if dataset == "" {
		stats, err = q.ListDatasets(ctx)
	} else {
		var s *query.DatasetStats
		if s, err = q.DatasetStats(ctx, dataset); err == nil {
			stats = append(stats, *s)
		}
	}
	if err != nil {
		log.WithError(err).Fatal("error executing query")
	}
	if len(stats) == 0 {
		log.Info("no datasets stored")
		return
	}

	for _, s := range stats {
		fmt.Printf("Dataset: %s (%s)\n", s.Dataset, s.Mode)
		fmt.Printf("  Runs: %d\n", s.Runs)
		fmt.Printf("  Rows: %d\n", s.Rows)
		fmt.Printf("  Sessions: %d\n", s.Sessions)
		fmt.Printf("  LastRun: %s at %s\n", s.LastRun, s.LastSeen.Format("2006-01-02 15:04:05"))
		fmt.Println("---------------------")
	}
}
