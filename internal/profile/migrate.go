package profile

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/hexagram/internal/normalize"
)

// legacyV1 is the version 1 state layout.
type legacyV1 struct {
	DisplayName       string `json:"displayName"`
	Gender            string `json:"gender"`
	Age               string `json:"age"`
	PreferredLanguage string `json:"preferredLanguage"`
	Region            string `json:"region"`
	PaidLevel         string `json:"paidLevel"`
	ServiceLevel      string `json:"serviceLevel"`
	LastSyncedAt      *int64 `json:"lastSyncedAt"`
}

// decode parses a persisted envelope and upgrades its state to the current
// layout. It returns the version the envelope was written with.
func decode(raw string) (UserProfile, int, error) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return UserProfile{}, 0, fmt.Errorf("decode envelope: %w", err)
	}
	if len(env.State) == 0 {
		return UserProfile{}, env.Version, fmt.Errorf("decode envelope: missing state")
	}

	switch {
	case env.Version <= 1:
		p, err := migrateV1(env.State)
		return p, env.Version, err
	case env.Version > CurrentVersion:
		slog.Warn("profile written by a newer client, decoding best-effort",
			"version", env.Version,
			"current", CurrentVersion,
		)
	}

	var p UserProfile
	if err := json.Unmarshal(env.State, &p); err != nil {
		return UserProfile{}, env.Version, fmt.Errorf("decode state v%d: %w", env.Version, err)
	}
	return p, env.Version, nil
}

func migrateV1(state json.RawMessage) (UserProfile, error) {
	var old legacyV1
	if err := json.Unmarshal(state, &old); err != nil {
		return UserProfile{}, fmt.Errorf("decode state v1: %w", err)
	}

	p := UserProfile{
		DisplayName:       old.DisplayName,
		Gender:            old.Gender,
		Age:               old.Age,
		PreferredLanguage: normalize.Language(old.PreferredLanguage),
		GenderPreference:  DefaultGenderPref,
		Region:            normalize.Region(old.Region),
		PaidLevel:         normalize.Enumerated(old.PaidLevel, DefaultLevel, PaidLevels),
		ServiceLevel:      normalize.Enumerated(old.ServiceLevel, DefaultLevel, ServiceLevels),
	}
	if old.LastSyncedAt != nil && *old.LastSyncedAt > 0 {
		ts := time.UnixMilli(*old.LastSyncedAt).UTC()
		p.LastSyncedAt = &ts
	}
	return p, nil
}
