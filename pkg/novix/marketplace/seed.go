package marketplace

import (
	"context"
	"fmt"
	"io"

	apperrors "github.com/novix-ai/novix/pkg/novix/errors"
	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML document accepted by LoadSeed
type SeedFile struct {
	Listings []Listing `yaml:"listings"`
}

// LoadSeed decodes listings from a YAML document and validates each one
func LoadSeed(r io.Reader) ([]Listing, error) {
	var file SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "failed to parse seed file", err)
	}

	for i := range file.Listings {
		if err := file.Listings[i].Validate(); err != nil {
			return nil, apperrors.New(apperrors.ErrCodeInvalidInput, fmt.Sprintf("listing #%d", i+1), err)
		}
	}
	return file.Listings, nil
}

// Seed inserts listings into the store
func (s *Store) Seed(ctx context.Context, listings []Listing) (int, error) {
	ptrs := make([]*Listing, len(listings))
	for i := range listings {
		ptrs[i] = &listings[i]
	}
	if err := s.Create(ctx, ptrs...); err != nil {
		return 0, err
	}
	return len(ptrs), nil
}
