// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// PinEnvPrefix prefixes the per-dataset version pin variable.
const PinEnvPrefix = "SCHEMA_VERSION_"

// Pins supplies version overrides that freeze a dataset to one contract
// version, e.g. for the duration of an audit period.
type Pins interface {
	Pin(datasetID string) (version int, ok bool, err error)
}

// EnvPins reads SCHEMA_VERSION_<dataset_id>, falling back to the upper-cased
// dataset id. Lookup defaults to os.LookupEnv.
type EnvPins struct {
	Lookup func(key string) (string, bool)
}

func (p EnvPins) Pin(datasetID string) (int, bool, error) {
	lookup := p.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, key := range []string{PinEnvPrefix + datasetID, PinEnvPrefix + strings.ToUpper(datasetID)} {
		raw, ok := lookup(key)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		v, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || v < 1 {
			return 0, false, fmt.Errorf("invalid version pin %s=%q: must be a positive integer", key, raw)
		}
		return v, true, nil
	}
	return 0, false, nil
}

// StaticPins pins datasets from configuration.
type StaticPins map[string]int

func (p StaticPins) Pin(datasetID string) (int, bool, error) {
	v, ok := p[datasetID]
	if !ok {
		return 0, false, nil
	}
	if v < 1 {
		return 0, false, fmt.Errorf("invalid version pin for %q: %d", datasetID, v)
	}
	return v, true, nil
}

// ChainPins consults each Pins in order; the first pin found wins.
type ChainPins []Pins

func (c ChainPins) Pin(datasetID string) (int, bool, error) {
	for _, p := range c {
		v, ok, err := p.Pin(datasetID)
		if err != nil || ok {
			return v, ok, err
		}
	}
	return 0, false, nil
}

// NoPins never pins.
type NoPins struct{}

func (NoPins) Pin(string) (int, bool, error) { return 0, false, nil }
