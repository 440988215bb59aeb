// Command score runs a churn analysis over a local CSV file without the HTTP
// server or a database. Results are kept in memory and printed as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/ignite/churn-scorer/internal/config"
	"github.com/ignite/churn-scorer/internal/digest"
	"github.com/ignite/churn-scorer/internal/domain"
	"github.com/ignite/churn-scorer/internal/pkg/logger"
	"github.com/ignite/churn-scorer/internal/prediction"
	"github.com/ignite/churn-scorer/internal/repository/memory"
	"github.com/ignite/churn-scorer/internal/service/analysis"
)

type output struct {
	Result   *analysis.Result        `json:"result"`
	Summary  *domain.AnalysisSummary `json:"summary,omitempty"`
	TopRisks []domain.Prediction     `json:"top_risks,omitempty"`
}

func main() {
	var (
		file          = flag.String("file", "", "path to the churn CSV file (required)")
		owner         = flag.String("owner", "local", "owner id recorded on the analysis")
		configPath    = flag.String("config", "", "optional config file")
		predictionURL = flag.String("prediction-url", "", "remote model base URL (overrides config)")
		maxInFlight   = flag.Int("max-in-flight", 0, "concurrent remote calls (overrides config)")
		topN          = flag.Int("top", digest.DefaultTopN, "number of highest-risk customers to print")
		quiet         = flag.Bool("quiet", false, "disable the progress spinner")
	)
	flag.Parse()

	if *file == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	logger.SetRedactPII(cfg.Log.Redact())
	logger.SetOutput(os.Stderr)

	if *predictionURL != "" {
		cfg.Prediction.BaseURL = *predictionURL
	}
	if *maxInFlight > 0 {
		cfg.Prediction.MaxInFlight = *maxInFlight
	}

	f, err := os.Open(*file)
	if err != nil {
		log.Fatalf("open %s: %v", *file, err)
	}
	defer f.Close()

	var bar *progressbar.ProgressBar
	if !*quiet {
		bar = progressbar.Default(-1, "scoring rows")
	}

	repo := memory.NewAnalysisRepo()
	predictor := prediction.NewClient(prediction.Config{
		BaseURL: cfg.Prediction.BaseURL,
		Timeout: cfg.Prediction.Timeout(),
	})
	svc := analysis.NewService(repo, nil, predictor, analysis.Options{
		MaxInFlight: cfg.Prediction.MaxInFlight,
		OnRow: func(domain.RowOutcome) {
			if bar != nil {
				_ = bar.Add(1)
			}
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	res, err := svc.Process(ctx, analysis.Request{
		OwnerID:  *owner,
		FileName: filepath.Base(*file),
	}, f)
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		log.Fatalf("analysis failed: %v", err)
	}

	out := output{Result: res}
	if summary, ok := repo.Analysis(res.AnalysisID); ok {
		out.Summary = &summary
		out.TopRisks = digest.TopRisks(repo.Predictions(res.AnalysisID), *topN)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatalf("encode result: %v", err)
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer drainCancel()
	_ = svc.Drain(drainCtx)

	if !res.Success {
		os.Exit(1)
	}
}
