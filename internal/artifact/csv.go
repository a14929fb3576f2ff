package artifact

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/signalsfoundry/vaccine-rollout-sim/model"
)

// csvColumns are the required header fields of an extract. age_start,
// age_end and sex may be left empty.
var csvColumns = []string{"location", "key", "year", "sex", "age_start", "age_end", "value"}

// ReadCSV parses an extract into rows. Covariate keys may be given by short
// name ("coverage_9mo"); sex labels such as "Female" or "Both" are
// normalised.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("artifact: read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range csvColumns {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("artifact: header missing column %q", c)
		}
	}

	var rows []Row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("artifact: line %d: %w", line, err)
		}
		row, err := parseRecord(rec, idx)
		if err != nil {
			return nil, fmt.Errorf("artifact: line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRecord(rec []string, idx map[string]int) (Row, error) {
	field := func(name string) string { return strings.TrimSpace(rec[idx[name]]) }

	row := Row{Location: field("location"), Key: field("key")}
	if row.Location == "" || row.Key == "" {
		return Row{}, errors.New("location and key are required")
	}
	if cov, err := model.ParseCovariate(row.Key); err == nil {
		row.Key = cov.ArtifactKey()
	}

	sex, err := model.ParseSex(field("sex"))
	if err != nil {
		return Row{}, err
	}
	row.Sex = sex.String()

	if row.Year, err = strconv.Atoi(field("year")); err != nil {
		return Row{}, fmt.Errorf("year: %w", err)
	}
	if row.Value, err = strconv.ParseFloat(field("value"), 64); err != nil {
		return Row{}, fmt.Errorf("value: %w", err)
	}
	if row.AgeStart, err = optionalFloat(field("age_start")); err != nil {
		return Row{}, fmt.Errorf("age_start: %w", err)
	}
	if row.AgeEnd, err = optionalFloat(field("age_end")); err != nil {
		return Row{}, fmt.Errorf("age_end: %w", err)
	}
	return row, nil
}

func optionalFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
