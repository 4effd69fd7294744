// Package watchschema validates watchlist configuration files against
// the embedded JSON schema before they reach the pipeline.
package watchschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/katharinadi0523-create/ai-news-radar/internal/watch"
)

//go:embed watchlists.schema.json
var watchlistsSchemaJSON string

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// ValidateWatchlistConfig checks a raw config document against the
// schema and decodes it. Categories that the schema admits but the
// pipeline would skip (blank ids, empty keyword lists after trimming)
// are still reported here so a misconfigured file fails loudly at
// validation time instead of silently shrinking the output.
func ValidateWatchlistConfig(raw json.RawMessage) (*watch.WatchlistFile, error) {
	value, err := decodeStrictJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("decode config JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize config JSON: %w", err)
	}

	var file watch.WatchlistFile
	if err := json.Unmarshal(normalized, &file); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validateSemantics(&file); err != nil {
		return nil, err
	}
	return &file, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		if err := compiler.AddResource("watchlists.schema.json", strings.NewReader(watchlistsSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		schema, err := compiler.Compile("watchlists.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}
		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("config is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("config contains trailing content")
	}
	return value, nil
}

func validateSemantics(file *watch.WatchlistFile) error {
	if file == nil {
		return fmt.Errorf("config is nil")
	}
	if len(file.SpecialFocus) == 0 && len(file.CompetitorMonitor) == 0 {
		return fmt.Errorf("config declares no categories")
	}

	seen := map[string]string{}
	for bucket, rows := range map[string][]watch.CategoryRow{
		"special_focus":      file.SpecialFocus,
		"competitor_monitor": file.CompetitorMonitor,
	} {
		for i, row := range rows {
			where := fmt.Sprintf("%s[%d]", bucket, i)
			id := strings.TrimSpace(row.ID)
			if id == "" {
				return fmt.Errorf("%s: id must not be blank", where)
			}
			if prev, dup := seen[bucket+"/"+id]; dup {
				return fmt.Errorf("%s: duplicate category id %q (also %s)", where, id, prev)
			}
			seen[bucket+"/"+id] = where

			keywords := 0
			for _, kw := range row.Keywords {
				if strings.TrimSpace(kw) != "" {
					keywords++
				}
			}
			if keywords == 0 {
				return fmt.Errorf("%s: keywords must contain at least one non-blank term", where)
			}
			for j, src := range row.OfficialSources {
				if strings.TrimSpace(src.URL) == "" {
					return fmt.Errorf("%s: official_sources[%d] url must not be blank", where, j)
				}
			}
		}
	}
	return nil
}
