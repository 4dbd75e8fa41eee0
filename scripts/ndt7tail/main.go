package main

import (
	"NDT7Spectra/internal/config"
	"NDT7Spectra/internal/output"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
)

func main() {
	app := kingpin.New("ndt7tail", "Print the feature rows published on NATS.")
	url := app.Flag("url", "NATS server URL").Default("nats://localhost:4222").String()
	subject := app.Flag("subject", "Subject prefix").Default(output.DefaultSubject).String()
	mode := app.Flag("mode", "Feature mode to follow, or * for all").Default("*").String()
	kingpin.MustParse(app.Parse(os.Args[1:]))

	log.SetHandler(cli.Default)

	sub, err := output.NewSubscriber(config.NATSConfig{URL: *url, Subject: *subject}, *mode)
	if err != nil {
		log.WithError(err).Fatal("failed to create subscriber")
	}
	defer sub.Close()

	err = sub.Start(func(msg output.RowMessage) {
		data, err := json.Marshal(msg.Features)
		if err != nil {
			log.WithError(err).Warn("failed to encode row")
			return
		}
		fmt.Printf("%s %s #%d %s\n", msg.Dataset, msg.UUID, msg.RowIndex, data)
	})
	if err != nil {
		log.WithError(err).Fatal("failed to subscribe")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
}
