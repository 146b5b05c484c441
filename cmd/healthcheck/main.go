// Package main is the container probe for acd-server. It requests the
// readiness endpoint and exits 0 on a 2xx answer, 1 otherwise.
//
// Usage: healthcheck [url]
//
// Without an argument the URL comes from ACD_HEALTHCHECK_URL.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

type probeConfig struct {
	URL     string        `env:"ACD_HEALTHCHECK_URL" envDefault:"http://localhost:8080/readyz"`
	Timeout time.Duration `env:"ACD_HEALTHCHECK_TIMEOUT" envDefault:"5s"`
}

func main() {
	cfg, err := env.ParseAs[probeConfig]()
	if err != nil {
		fmt.Fprintf(os.Stderr, "healthcheck: %v\n", err)
		os.Exit(1)
	}
	if len(os.Args) > 1 {
		cfg.URL = os.Args[1]
	}

	if err := probe(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "healthcheck failed: %v\n", err)
		os.Exit(1)
	}
}

func probe(cfg probeConfig) error {
	client := &http.Client{Timeout: cfg.Timeout}
	resp, err := client.Get(cfg.URL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
