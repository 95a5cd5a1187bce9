// cmd/preflight/main.go
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"

	"github.com/Normaleshok/domain-checker/internal/config"
	"github.com/Normaleshok/domain-checker/internal/source"
)

func main() {
	failed := false
	fail := func(msg string) {
		color.New(color.FgHiRed).Fprintln(os.Stderr, "✖", msg)
		failed = true
	}
	warn := func(msg string) { color.New(color.FgHiYellow).Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { color.New(color.FgHiGreen).Println("✔", msg) }

	if err := config.LoadDotEnv(".env"); err != nil {
		fail("cannot read .env: " + err.Error())
	}
	cfg := config.FromEnv()

	var ice *config.InvalidConfigError
	if err := cfg.Validate(); errors.As(err, &ice) {
		for _, p := range ice.Problems {
			fail(p)
		}
	} else if err != nil {
		fail(err.Error())
	} else {
		ok(fmt.Sprintf("config valid (workers=%d batch=%d)", cfg.Workers, cfg.BatchSize))
	}

	if len(cfg.Resolvers) == 0 {
		ok("RESOLVERS empty; using the OS resolver")
	} else {
		ok(fmt.Sprintf("RESOLVERS=%v", cfg.Resolvers))
	}

	dir := filepath.Dir(cfg.Output)
	if st, err := os.Stat(dir); err == nil && !st.IsDir() {
		fail(dir + " is not a directory (OUTPUT=" + cfg.Output + ")")
	} else {
		ok("OUTPUT=" + cfg.Output)
	}

	if cfg.DatabaseURL == "" {
		warn("DATABASE_URL empty; results go to the CSV file only.")
	} else {
		ok("DATABASE_URL present")
	}
	if cfg.StatusAddr != "" && len(cfg.StatusAPIKeys) == 0 {
		warn("STATUS_API_KEYS empty; /api on " + cfg.StatusAddr + " is open to anyone who can reach it.")
	}

	loader := source.NewLoader()
	for _, path := range os.Args[1:] {
		list, err := loader.Load(path)
		if err != nil {
			fail(err.Error())
			continue
		}
		ok(fmt.Sprintf("%s: %d domains (%s)", list.Path, len(list.Domains), list.Encoding))
	}

	if failed {
		os.Exit(1)
	}
	ok("preflight passed")
}
