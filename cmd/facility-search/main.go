// Command facility-search runs one food facility search against the API and
// prints the results.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mohammed-shakir/food-facility-search/internal/core/config"
	"github.com/mohammed-shakir/food-facility-search/internal/core/model"
	"github.com/mohammed-shakir/food-facility-search/internal/logger"
	"github.com/mohammed-shakir/food-facility-search/internal/searchview"
)

type options struct {
	api       string
	mode      string
	lat       string
	lon       string
	applicant string
	address   string
	statuses  string
	logLevel  string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("facility-search", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.api, "api", envOr("FACILITY_API_URL", "http://localhost:8080"), "search API base URL")
	fs.StringVar(&o.mode, "mode", "nearby", "search kind: nearby|applicant")
	fs.StringVar(&o.lat, "lat", "", "origin latitude (nearby)")
	fs.StringVar(&o.lon, "lon", "", "origin longitude (nearby)")
	fs.StringVar(&o.applicant, "applicant", "", "applicant name fragment (applicant)")
	fs.StringVar(&o.address, "address", "", "street fragment (applicant)")
	fs.StringVar(&o.statuses, "status", "", "comma separated statuses, in order (APPROVED,EXPIRED,REQUESTED,SUSPENDED)")
	fs.StringVar(&o.logLevel, "log-level", envOr("LOG_LEVEL", "warn"), "log level")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	switch o.mode {
	case "nearby", "applicant":
	default:
		return options{}, fmt.Errorf("unknown -mode %q (nearby|applicant)", o.mode)
	}
	return o, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	_ = config.LoadDotEnv()
	o, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err)
		return 2
	}

	zl := logger.Build(logger.Config{Level: o.logLevel, Console: true, Component: "facility-search"}, stderr)
	view := searchview.New(searchview.NewClient(o.api, nil), logger.NewSlog(&zl))

	sel := view.NearbyStatuses
	if o.mode == "applicant" {
		sel = view.ApplicantStatuses
	}
	for s := range strings.SplitSeq(o.statuses, ",") {
		if strings.TrimSpace(s) == "" {
			continue
		}
		opt, ok := model.LookupStatus(s)
		if !ok {
			fmt.Fprintf(stderr, "unknown status %q\n", s)
			return 2
		}
		sel.Select(opt)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if o.mode == "nearby" {
		view.SetLatitude(o.lat)
		view.SetLongitude(o.lon)
		err = view.SearchNearby(ctx)
	} else {
		view.SetApplicant(o.applicant)
		view.SetAddress(o.address)
		err = view.SearchApplicant(ctx)
	}
	if err != nil {
		return 1
	}
	if err := view.Render(stdout); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
