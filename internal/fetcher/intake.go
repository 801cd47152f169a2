package fetcher

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/finfacts-cli/internal/model"
)

// Intake is one fully read source file ready for ingestion.
type Intake struct {
	Filename    string
	ContentHash string
	Rows        []model.RawRow
}

// LoadOptions configures intake parsing.
type LoadOptions struct {
	Meta TableMeta
	CSV  CSVOptions
	XLSX XLSXOptions
}

// Load reads one source file (CSV, XLSX, or JSON row batch, chosen by
// extension) into raw rows plus the content hash that identifies the
// document.
func Load(filename string, r io.Reader, opts LoadOptions) (*Intake, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrapf(err, "intake: read %s", filename)
	}

	hash, err := ContentHash(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	if opts.Meta.SourceFile == "" {
		opts.Meta.SourceFile = filepath.Base(filename)
	}

	var rows []model.RawRow
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		table, err := ReadCSV(bytes.NewReader(data), opts.CSV)
		if err != nil {
			return nil, err
		}
		rows, err = MapTable(table, opts.Meta)
		if err != nil {
			return nil, err
		}
	case ".xlsx":
		table, err := ReadXLSX(data, opts.XLSX)
		if err != nil {
			return nil, err
		}
		rows, err = MapTable(table, opts.Meta)
		if err != nil {
			return nil, err
		}
	case ".json":
		rows, err = ReadRowsJSON(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		applyMetaDefaults(rows, opts.Meta)
	default:
		return nil, eris.Errorf("intake: unsupported file type %s", filename)
	}

	return &Intake{
		Filename:    filepath.Base(filename),
		ContentHash: hash,
		Rows:        rows,
	}, nil
}

// applyMetaDefaults fills gaps in pre-extracted rows from the file-level
// metadata without overriding what the extraction stage already set.
func applyMetaDefaults(rows []model.RawRow, meta TableMeta) {
	for i := range rows {
		if rows[i].CompanyName == "" {
			rows[i].CompanyName = meta.CompanyName
		}
		if rows[i].SourceFile == "" {
			rows[i].SourceFile = meta.SourceFile
		}
		if rows[i].PeriodType == "" {
			rows[i].PeriodType = meta.PeriodType
		}
		if rows[i].Currency == "" {
			rows[i].Currency = meta.Currency
		}
		if rows[i].ExtractionMethod == "" {
			rows[i].ExtractionMethod = meta.ExtractionMethod
		}
		if rows[i].Confidence == 0 {
			rows[i].Confidence = meta.Confidence
		}
	}
}
