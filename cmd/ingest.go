package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/finfacts-cli/internal/fetcher"
	"github.com/sells-group/finfacts-cli/internal/model"
)

var (
	ingestFile       string
	ingestURL        string
	ingestCompany    string
	ingestPeriodType string
	ingestCurrency   string
	ingestCharset    string
	ingestSheet      string
	ingestMethod     string
	ingestConfidence float64
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest one statement file (CSV, XLSX, or JSON row batch)",
	Long:  "Reads a statement file from disk or a remote URL (http, https, or ftp), runs the full pipeline, and prints a batch summary.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if ingestFile == "" && ingestURL == "" {
			return eris.New("one of --file or --url is required")
		}

		svc, st, err := initService(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		name, reader, cleanup, err := openSource(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		intake, err := fetcher.Load(name, reader, fetcher.LoadOptions{
			Meta: fetcher.TableMeta{
				CompanyName:      ingestCompany,
				PeriodType:       model.PeriodType(ingestPeriodType),
				Currency:         ingestCurrency,
				ExtractionMethod: ingestMethod,
				Confidence:       ingestConfidence,
			},
			CSV:  fetcher.CSVOptions{Charset: ingestCharset, TrimSpace: true},
			XLSX: fetcher.XLSXOptions{SheetName: ingestSheet},
		})
		if err != nil {
			return eris.Wrap(err, "read source file")
		}

		doc := &model.Document{
			Filename:    intake.Filename,
			ContentHash: intake.ContentHash,
		}
		result, err := svc.IngestBatch(ctx, doc, intake.Rows)
		if err != nil {
			return eris.Wrap(err, "ingest batch")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

// openSource resolves --file / --url into a named reader.
func openSource(ctx context.Context) (string, io.Reader, func(), error) {
	if ingestFile != "" {
		f, err := os.Open(ingestFile)
		if err != nil {
			return "", nil, nil, eris.Wrapf(err, "open %s", ingestFile)
		}
		return ingestFile, f, func() { f.Close() }, nil //nolint:errcheck
	}

	var f fetcher.Fetcher
	if strings.HasPrefix(ingestURL, "ftp://") {
		f = fetcher.NewFTPFetcher(fetcher.FTPOptions{
			Timeout: time.Duration(cfg.FTP.TimeoutSecs) * time.Second,
		})
	} else {
		f = fetcher.NewHTTPFetcher(fetcher.HTTPOptions{})
	}
	rc, err := f.Download(ctx, ingestURL)
	if err != nil {
		return "", nil, nil, eris.Wrapf(err, "download %s", ingestURL)
	}
	return filepath.Base(ingestURL), rc, func() { rc.Close() }, nil //nolint:errcheck
}

func init() {
	ingestCmd.Flags().StringVar(&ingestFile, "file", "", "local statement file")
	ingestCmd.Flags().StringVar(&ingestURL, "url", "", "remote statement file (http, https, or ftp)")
	ingestCmd.Flags().StringVar(&ingestCompany, "company", "", "company the file belongs to (required for tabular files without a company column)")
	ingestCmd.Flags().StringVar(&ingestPeriodType, "period-type", string(model.PeriodMonthly), "period granularity: Monthly, Quarterly, or Yearly")
	ingestCmd.Flags().StringVar(&ingestCurrency, "currency", "", "currency for values without a marker (defaults to the configured base currency)")
	ingestCmd.Flags().StringVar(&ingestCharset, "charset", "", "source charset for CSV files (IANA name, e.g. windows-1252)")
	ingestCmd.Flags().StringVar(&ingestSheet, "sheet", "", "XLSX sheet name (defaults to the first sheet)")
	ingestCmd.Flags().StringVar(&ingestMethod, "method", "manual_upload", "extraction method recorded on each fact")
	ingestCmd.Flags().Float64Var(&ingestConfidence, "confidence", 1.0, "extraction confidence for rows without one")
	rootCmd.AddCommand(ingestCmd)
}
