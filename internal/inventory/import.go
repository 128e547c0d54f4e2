package inventory

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rogerio-castellano/stock-ledger/internal/auth"
	"github.com/rogerio-castellano/stock-ledger/internal/models"
	"github.com/rogerio-castellano/stock-ledger/internal/repo"
)

// ImportMode decides what happens to rows naming an existing product.
type ImportMode string

const (
	ImportSkip   ImportMode = "skip"
	ImportUpdate ImportMode = "update"
)

func ParseImportMode(s string) ImportMode {
	if strings.EqualFold(s, string(ImportUpdate)) {
		return ImportUpdate
	}
	return ImportSkip
}

// ImportResult counts created and updated products and lists rejected rows.
type ImportResult struct {
	Created int                 `json:"created"`
	Updated int                 `json:"updated"`
	Skipped int                 `json:"skipped"`
	Errors  []models.FieldError `json:"errors"`
}

type csvRow struct {
	line int
	in   ProductInput
	err  error
}

// parseCSV reads a header row naming name, unit, min_stock and optionally
// description, in any order and case.
func parseCSV(r io.Reader) ([]csvRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, models.NewValidationError(models.FieldError{Field: "file", Description: "invalid CSV header"})
	}
	index := map[string]int{}
	for i, h := range headers {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"name", "unit", "min_stock"} {
		if _, ok := index[required]; !ok {
			return nil, models.NewValidationError(models.FieldError{Field: "file", Description: "missing column " + required})
		}
	}

	field := func(record []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []csvRow
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, models.NewValidationError(models.FieldError{Field: "file", Description: fmt.Sprintf("CSV read error: %v", err)})
		}

		row := csvRow{line: line, in: ProductInput{
			Name:        field(record, "name"),
			Description: field(record, "description"),
			Unit:        field(record, "unit"),
		}}
		if raw := field(record, "min_stock"); raw != "" {
			row.in.MinStock, row.err = strconv.ParseInt(raw, 10, 64)
			if row.err != nil {
				row.err = fmt.Errorf("invalid min_stock %q", raw)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ImportProducts creates products from CSV. Rows naming an existing product
// are skipped or update it, depending on mode. Invalid rows are reported
// and do not stop the import.
func (s *Service) ImportProducts(ctx context.Context, session *auth.Session, r io.Reader, mode ImportMode) (ImportResult, error) {
	if err := auth.Require(session, models.RoleAdmin); err != nil {
		return ImportResult{}, err
	}

	rows, err := parseCSV(r)
	if err != nil {
		return ImportResult{}, err
	}

	result := ImportResult{Errors: []models.FieldError{}}
	rowError := func(line int, msg string) {
		result.Errors = append(result.Errors, models.FieldError{Field: fmt.Sprintf("row %d", line), Description: msg})
	}

	for _, row := range rows {
		if row.err != nil {
			rowError(row.line, row.err.Error())
			continue
		}
		if err := row.in.product(0).Validate(); err != nil {
			rowError(row.line, err.Error())
			continue
		}

		existing, err := s.products.GetByName(ctx, strings.TrimSpace(row.in.Name))
		switch {
		case err == nil && mode == ImportSkip:
			result.Skipped++
			rowError(row.line, fmt.Sprintf("product '%s' already exists", existing.Name))
		case err == nil:
			if _, err := s.UpdateProduct(ctx, session, existing.ID, row.in); err != nil {
				if _, ok := models.IsValidation(err); !ok {
					return result, err
				}
				rowError(row.line, err.Error())
				continue
			}
			result.Updated++
		case errors.Is(err, repo.ErrProductNotFound):
			if _, err := s.CreateProduct(ctx, session, row.in); err != nil {
				if _, ok := models.IsValidation(err); !ok {
					return result, err
				}
				rowError(row.line, err.Error())
				continue
			}
			result.Created++
		default:
			return result, err
		}
	}

	s.log.Info().Int("created", result.Created).Int("updated", result.Updated).Int("rejected", len(result.Errors)).Str("actor", actor(session)).Msg("products imported")
	return result, nil
}
