package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/JaimeStill/civic/internal/jurisdictions"
)

// catalogFile is the provisioning document:
//
//	jurisdictions:
//	  - name: Kochi
//	    type: MUNICIPAL_CORPORATION
//	    state: Kerala
//	    district: Ernakulam
//	    bounds: {north: 10.1, south: 9.9, east: 76.4, west: 76.2}
type catalogFile struct {
	Jurisdictions []jurisdictions.CreateCommand `yaml:"jurisdictions"`
}

func parseCatalog(r io.Reader) ([]jurisdictions.CreateCommand, error) {
	var f catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(f.Jurisdictions) == 0 {
		return nil, errors.New("catalog lists no jurisdictions")
	}
	return f.Jurisdictions, nil
}

type creator interface {
	Create(ctx context.Context, cmd jurisdictions.CreateCommand) (*jurisdictions.Jurisdiction, error)
}

type seedResult struct {
	Created int
	Skipped int
}

// seed provisions every entry. Existing jurisdictions are skipped so the
// catalog can be re-applied; any other failure stops the run.
func seed(ctx context.Context, sys creator, cmds []jurisdictions.CreateCommand, logger *slog.Logger) (seedResult, error) {
	var res seedResult
	for i, cmd := range cmds {
		_, err := sys.Create(ctx, cmd)
		switch {
		case errors.Is(err, jurisdictions.ErrDuplicate):
			res.Skipped++
			logger.Info("jurisdiction exists", "name", cmd.Name, "state", cmd.State)
		case err != nil:
			return res, fmt.Errorf("entry %d (%s): %w", i, cmd.Name, err)
		default:
			res.Created++
		}
	}
	return res, nil
}
