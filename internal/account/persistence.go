package account

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// snapshotDocument mirrors Snapshot with optional fields so that missing
// values fall back to defaults on load
type snapshotDocument struct {
	InitialCash  *float64            `json:"initial_cash"`
	CashBalance  *float64            `json:"cash_balance"`
	Positions    map[string]Position `json:"positions"`
	OrderHistory []Order             `json:"order_history"`
}

// Save writes the whole account to path as JSON. The document is written to
// a temporary file in the same directory and renamed into place.
func (a *Account) Save(path string) error {
	data, err := json.MarshalIndent(a.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create account dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp account file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write account: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write account: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace account file: %w", err)
	}

	log.Debug().Str("path", path).Msg("account saved")
	return nil
}

// Load reads an account saved with Save. A missing file is not an error:
// a fresh account with the default balance is returned instead.
func Load(path string, opts ...Option) (*Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Info().Str("path", path).Msg("no saved account, starting fresh")
			return New(DefaultInitialCash, opts...), nil
		}
		return nil, fmt.Errorf("failed to read account: %w", err)
	}

	snap, err := DecodeSnapshot(data)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("path", path).
		Int("positions", len(snap.Positions)).
		Int("orders", len(snap.OrderHistory)).
		Msg("account loaded")

	return FromSnapshot(snap, opts...), nil
}

// DecodeSnapshot parses a persisted account document, applying defaults for
// missing fields
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var doc snapshotDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return Snapshot{}, fmt.Errorf("failed to unmarshal account: %w", err)
	}

	snap := Snapshot{
		InitialCash:  DefaultInitialCash,
		CashBalance:  DefaultInitialCash,
		Positions:    doc.Positions,
		OrderHistory: doc.OrderHistory,
	}
	if doc.InitialCash != nil {
		snap.InitialCash = *doc.InitialCash
	}
	if doc.CashBalance != nil {
		snap.CashBalance = *doc.CashBalance
	}
	if snap.Positions == nil {
		snap.Positions = make(map[string]Position)
	}
	for i := range snap.OrderHistory {
		if snap.OrderHistory[i].Status == "" {
			snap.OrderHistory[i].Status = StatusFilled
		}
	}

	return snap, nil
}
