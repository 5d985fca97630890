// Package session loads session input documents and fingerprints them.
package session

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/emgscore/internal/model"
)

var (
	// ErrUnsupportedFormat is returned for files that are neither YAML nor JSON.
	ErrUnsupportedFormat = errors.New("unsupported session file format")
	// ErrNonFinite is returned when a document holds NaN or infinite numbers.
	ErrNonFinite = errors.New("session document contains a non-finite number")
)

// Load reads a session input from a .yaml, .yml or .json file.
func Load(path string) (model.SessionInput, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
	default:
		return model.SessionInput{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	file, err := os.Open(path)
	if err != nil {
		return model.SessionInput{}, err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only input.
			_ = cerr
		}
	}()
	in, err := Decode(file)
	if err != nil {
		return model.SessionInput{}, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return in, nil
}

// Decode parses a YAML or JSON session document. JSON is decoded through the
// YAML parser, so both share one set of field names.
func Decode(r io.Reader) (model.SessionInput, error) {
	var in model.SessionInput
	if err := yaml.NewDecoder(r).Decode(&in); err != nil {
		if errors.Is(err, io.EOF) {
			return model.SessionInput{}, fmt.Errorf("session document is empty")
		}
		return model.SessionInput{}, err
	}
	for name, ch := range in.Channels {
		if ch.Channel == "" {
			ch.Channel = name
			in.Channels[name] = ch
		}
	}
	if err := checkFinite(in); err != nil {
		return model.SessionInput{}, err
	}
	return in, nil
}

// checkFinite rejects NaN and infinities, which YAML accepts as .nan and .inf.
func checkFinite(in model.SessionInput) error {
	check := func(field string, v float64) error {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s", ErrNonFinite, field)
		}
		return nil
	}
	checkPtr := func(field string, v *float64) error {
		if v == nil {
			return nil
		}
		return check(field, *v)
	}
	for _, f := range []struct {
		name string
		v    *float64
	}{
		{"pre_session_rpe", in.PreSessionRPE},
		{"post_session_rpe", in.PostSessionRPE},
		{"game_points", in.GamePoints},
	} {
		if err := checkPtr(f.name, f.v); err != nil {
			return err
		}
	}
	for _, side := range []struct {
		name string
		r    *model.BFRReading
	}{{"bfr_left", in.BFRLeft}, {"bfr_right", in.BFRRight}} {
		if side.r == nil {
			continue
		}
		if err := checkPtr(side.name+".pressure_aop_pct", side.r.PressureAOPPercent); err != nil {
			return err
		}
	}
	for _, name := range sortedChannels(in) {
		ch := in.Channels[name]
		if err := checkPtr(name+".mvc_threshold_actual_value", ch.AmplitudeThresholdActualValue); err != nil {
			return err
		}
		if err := checkPtr(name+".duration_threshold_actual_value", ch.DurationThresholdActualValue); err != nil {
			return err
		}
		for i, c := range ch.Contractions {
			prefix := fmt.Sprintf("%s.contractions[%d].", name, i)
			if err := check(prefix+"start_time_ms", c.StartTimeMs); err != nil {
				return err
			}
			if err := check(prefix+"end_time_ms", c.EndTimeMs); err != nil {
				return err
			}
			if err := check(prefix+"max_amplitude", c.MaxAmplitude); err != nil {
				return err
			}
		}
	}
	return nil
}

func sortedChannels(in model.SessionInput) []string {
	names := make([]string, 0, len(in.Channels))
	for name := range in.Channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Hash fingerprints a scoring pass. Identical inputs and configuration give
// identical hashes, so callers can skip rescoring unchanged content.
func Hash(in model.SessionInput, cfg model.SessionConfiguration) (string, error) {
	h := sha256.New()
	enc := json.NewEncoder(h)
	if err := enc.Encode(in); err != nil {
		return "", fmt.Errorf("failed to hash session input: %w", err)
	}
	if err := enc.Encode(cfg); err != nil {
		return "", fmt.Errorf("failed to hash configuration: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Summary is a short per-channel description used in logs.
func Summary(in model.SessionInput) string {
	names := sortedChannels(in)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", name, len(in.Channels[name].Contractions)))
	}
	return strings.Join(parts, " ")
}
