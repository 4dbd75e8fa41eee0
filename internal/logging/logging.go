// Package logging configures the apex/log default logger.
package logging

import (
	"fmt"
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/apex/log/handlers/json"
)

// Setup installs the handler and level. format is "cli" or "json".
func Setup(level, format string) error {
	switch format {
	case "", "cli":
		log.SetHandler(cli.New(os.Stderr))
	case "json":
		log.SetHandler(json.New(os.Stderr))
	default:
		return fmt.Errorf("unknown log format: '%s'", format)
	}
	if level == "" {
		level = "info"
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level '%s': %w", level, err)
	}
	log.SetLevel(lvl)
	return nil
}
