package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"example.com/gymbooking/internal/authflow"
)

// pendingFlow is an OTP flow waiting for the next command. Otp is only kept once verified.
type pendingFlow struct {
	State authflow.State `json:"state"`
	Otp   string         `json:"otp,omitempty"`
}

type flowFile struct {
	path string
}

// Load returns nil when no flow is pending.
func (f *flowFile) Load() (*pendingFlow, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec pendingFlow
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.path, err)
	}
	if !rec.State.Pending() {
		return nil, nil
	}
	return &rec, nil
}

func (f *flowFile) Save(rec pendingFlow) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, raw, 0o600)
}

func (f *flowFile) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
