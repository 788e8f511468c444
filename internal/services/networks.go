// Package services provides business logic services for lanscan.
// This file implements management of the stored network list: the ordered
// set of CIDR ranges that a scan session walks when no ranges are given
// explicitly.
package services

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/anstrom/lanscan/internal/discovery"
	"github.com/anstrom/lanscan/internal/errors"
	"github.com/anstrom/lanscan/internal/logging"
)

// DefaultNetworks is written by Seed when no network file exists.
var DefaultNetworks = []string{"192.168.1.0/24", "10.0.0.0/24"}

// ReplaceResult reports the outcome of Replace.
type ReplaceResult struct {
	Saved   []string `json:"saved"`
	Invalid []string `json:"invalid_networks"`
}

// ImportResult reports the outcome of Import.
type ImportResult struct {
	Added   []string `json:"added"`
	Skipped []string `json:"skipped"`
	Invalid []string `json:"invalid_networks"`
}

// NetworkService manages the network list stored as a JSON array file.
// Ranges are stored in canonical form with host bits cleared.
type NetworkService struct {
	path string
	mu   sync.Mutex
}

// NewNetworkService creates a service backed by path.
func NewNetworkService(path string) *NetworkService {
	return &NetworkService{path: path}
}

// Path returns the backing file.
func (s *NetworkService) Path() string {
	return s.path
}

// Validate returns the canonical form of cidr or a TARGET_INVALID error.
func (s *NetworkService) Validate(cidr string) (string, error) {
	return Canonical(cidr)
}

// Canonical parses cidr and returns its masked prefix string.
func Canonical(cidr string) (string, error) {
	prefix, err := discovery.ParseRange(cidr)
	if err != nil {
		return "", err
	}
	return prefix.String(), nil
}

// List returns the stored networks in order. A missing file is an empty list.
func (s *NetworkService) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Add validates and appends cidr. It reports false when the range is
// already present.
func (s *NetworkService) Add(cidr string) (string, bool, error) {
	canonical, err := Canonical(cidr)
	if err != nil {
		return "", false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	networks, err := s.load()
	if err != nil {
		return "", false, err
	}
	if slices.Contains(networks, canonical) {
		return canonical, false, nil
	}
	if err := s.save(append(networks, canonical)); err != nil {
		return "", false, err
	}

	logging.Info("Network added", "component", "networks", "network", canonical)
	return canonical, true, nil
}

// Remove deletes cidr. The range may be given in any form that canonicalizes
// to a stored entry. It reports false when nothing was removed.
func (s *NetworkService) Remove(cidr string) (bool, error) {
	target := strings.TrimSpace(cidr)
	if canonical, err := Canonical(cidr); err == nil {
		target = canonical
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	networks, err := s.load()
	if err != nil {
		return false, err
	}

	kept := networks[:0]
	removed := false
	for _, n := range networks {
		if n == target {
			removed = true
			continue
		}
		kept = append(kept, n)
	}
	if !removed {
		return false, nil
	}
	if err := s.save(kept); err != nil {
		return false, err
	}

	logging.Info("Network removed", "component", "networks", "network", target)
	return true, nil
}

// Clear removes every stored network.
func (s *NetworkService) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save([]string{})
}

// Replace stores the valid entries of networks in order, dropping
// duplicates, and reports the invalid ones. Invalid entries never prevent
// the valid ones from being saved.
func (s *NetworkService) Replace(networks []string) (ReplaceResult, error) {
	result := ReplaceResult{Saved: []string{}, Invalid: []string{}}
	for _, n := range networks {
		canonical, err := Canonical(n)
		if err != nil {
			result.Invalid = append(result.Invalid, n)
			continue
		}
		if !slices.Contains(result.Saved, canonical) {
			result.Saved = append(result.Saved, canonical)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.save(result.Saved); err != nil {
		return ReplaceResult{}, err
	}
	if len(result.Invalid) > 0 {
		logging.Warn("Ignored invalid networks", "component", "networks", "invalid", result.Invalid)
	}
	return result, nil
}

// Import merges ranges read from r, one per line, into the stored list.
// Blank lines and lines starting with '#' are ignored.
func (s *NetworkService) Import(r io.Reader) (ImportResult, error) {
	result := ImportResult{Added: []string{}, Skipped: []string{}, Invalid: []string{}}

	var candidates []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		candidates = append(candidates, line)
	}
	if err := scanner.Err(); err != nil {
		return ImportResult{}, fmt.Errorf("failed to read network list: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	networks, err := s.load()
	if err != nil {
		return ImportResult{}, err
	}
	for _, c := range candidates {
		canonical, err := Canonical(c)
		if err != nil {
			result.Invalid = append(result.Invalid, c)
			continue
		}
		if slices.Contains(networks, canonical) {
			result.Skipped = append(result.Skipped, canonical)
			continue
		}
		networks = append(networks, canonical)
		result.Added = append(result.Added, canonical)
	}

	if len(result.Added) > 0 {
		if err := s.save(networks); err != nil {
			return ImportResult{}, err
		}
	}
	return result, nil
}

// Seed writes networks when the backing file does not exist yet. It
// reports whether the file was created.
func (s *NetworkService) Seed(networks []string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to stat network file: %w", err)
	}

	var seeded []string
	for _, n := range networks {
		canonical, err := Canonical(n)
		if err != nil {
			return false, err
		}
		if !slices.Contains(seeded, canonical) {
			seeded = append(seeded, canonical)
		}
	}
	if seeded == nil {
		seeded = []string{}
	}
	if err := s.save(seeded); err != nil {
		return false, err
	}

	logging.Info("Seeded network file", "component", "networks", "path", s.path, "networks", len(seeded))
	return true, nil
}

func (s *NetworkService) load() ([]string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read network file: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return []string{}, nil
	}

	var networks []string
	if err := json.Unmarshal(data, &networks); err != nil {
		return nil, errors.ErrConfigInvalid("networks_file", s.path)
	}
	if networks == nil {
		networks = []string{}
	}
	return networks, nil
}

func (s *NetworkService) save(networks []string) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create network file directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(networks, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode networks: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write network file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write network file: %w", err)
	}
	return nil
}
