// Command probe loads one dataset and prints what the pipeline would see:
// the inferred schema, the first rows and a uniqueness report that names
// the primary key candidates.
//
// Ad hoc source (format from the extension unless -format is set):
//
//	probe -url data/work_experience.csv -dataset work_experience -clean
//
// A dataset from the pipeline config:
//
//	probe -config configs/hr_job_change.yaml -dataset enrollee
//
// Report mode (-report) prints only the uniqueness report, for scripts.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"hretl/internal/cleaning"
	"hretl/internal/config"
	"hretl/internal/pipeline"
	"hretl/internal/probe"
	"hretl/internal/table"

	_ "hretl/internal/storage/all"
)

func main() {
	var (
		flagConfig  = flag.String("config", "", "Pipeline config; the source of -dataset is taken from it")
		flagDataset = flag.String("dataset", "dataset", "Dataset name (selects the config source and the cleaning recipe)")

		flagURL      = flag.String("url", "", "Path or URL of an ad hoc source (ignored with -config)")
		flagKind     = flag.String("kind", "file", "Ad hoc source kind: file|html")
		flagFormat   = flag.String("format", "", "Ad hoc file format: csv|excel|json (default: from extension)")
		flagSelector = flag.String("selector", "", "CSS selector of the table for html sources")
		flagEncoding = flag.String("encoding", "", "Input charset (default: sniff BOM, else UTF-8)")
		flagComma    = flag.String("comma", "", "CSV field separator")
		flagSheet    = flag.String("sheet", "", "Excel sheet name (default: first sheet)")

		flagClean  = flag.Bool("clean", false, "Run the dataset's cleaning recipe before profiling")
		flagRows   = flag.Int("rows", 5, "Number of rows to print")
		flagReport = flag.Bool("report", false, "Print only the uniqueness report")
	)
	flag.Parse()

	cfg, err := probeConfig(*flagConfig, *flagDataset, config.SourceSpec{
		Kind:     *flagKind,
		Location: strings.TrimSpace(*flagURL),
		Format:   *flagFormat,
		Selector: *flagSelector,
		Options:  adHocOptions(*flagEncoding, *flagComma, *flagSheet),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	logger := log.New(os.Stderr, "", log.LstdFlags)
	r, err := pipeline.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("probe: %v", err)
	}
	t, err := r.Loader.Load(ctx, *flagDataset, cfg.Sources[*flagDataset])
	if err != nil {
		log.Fatalf("probe: %v", err)
	}
	t.Name = *flagDataset

	if *flagClean {
		if err := (cleaning.Cleaner{Logger: logger}).Clean(t); err != nil {
			log.Printf("probe: clean %s: %v", t.Name, err)
		}
	}

	profiles := probe.Profile(t)
	if *flagReport {
		if err := probe.WriteReport(os.Stdout, profiles); err != nil {
			log.Fatalf("probe: %v", err)
		}
		return
	}

	if err := describe(t, profiles, *flagRows); err != nil {
		log.Fatalf("probe: %v", err)
	}
}

// probeConfig returns a config whose Sources holds dataset. With a config
// path the source comes from the file; otherwise adHoc is used.
func probeConfig(path, dataset string, adHoc config.SourceSpec) (config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
		if _, ok := cfg.Sources[dataset]; !ok {
			return config.Config{}, fmt.Errorf("dataset %q is not configured in %s", dataset, path)
		}
		return cfg, nil
	}

	if adHoc.Location == "" {
		return config.Config{}, fmt.Errorf("missing -url or -config")
	}
	cfg := config.Config{Sources: map[string]config.SourceSpec{dataset: adHoc}}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func adHocOptions(encoding, comma, sheet string) config.Options {
	opt := config.Options{}
	if encoding != "" {
		opt["encoding"] = encoding
	}
	if comma != "" {
		opt["comma"] = comma
	}
	if sheet != "" {
		opt["sheet"] = sheet
	}
	return opt
}

func describe(t *table.Table, profiles []probe.ColumnProfile, rows int) error {
	w := os.Stdout
	if err := t.Info(w); err != nil {
		return err
	}
	fmt.Fprintln(w)
	if err := t.Head(w, rows); err != nil {
		return err
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "uniqueness report:")
	if err := probe.WriteReport(w, profiles); err != nil {
		return err
	}
	keys := probe.KeyCandidates(profiles)
	if len(keys) == 0 {
		_, err := fmt.Fprintln(w, "key candidates: none")
		return err
	}
	_, err := fmt.Fprintf(w, "key candidates: %s\n", strings.Join(keys, ", "))
	return err
}
