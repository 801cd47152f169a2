package fetcher

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/finfacts-cli/internal/model"
)

// ReadRowsJSON decodes a JSON array of raw rows, the format the upstream
// extraction stage emits. Decoding is streamed so large batches do not need
// a second in-memory copy of the file.
func ReadRowsJSON(r io.Reader) ([]model.RawRow, error) {
	decoder := json.NewDecoder(r)

	tok, err := decoder.Token()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, eris.Wrap(err, "json: read opening token")
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '[' {
		return nil, eris.Errorf("json: expected array, got %v", tok)
	}

	var rows []model.RawRow
	for decoder.More() {
		var row model.RawRow
		if err := decoder.Decode(&row); err != nil {
			return nil, eris.Wrap(err, "json: decode row")
		}
		rows = append(rows, row)
	}

	if _, err := decoder.Token(); err != nil && err != io.EOF {
		return nil, eris.Wrap(err, "json: read closing token")
	}
	return rows, nil
}
