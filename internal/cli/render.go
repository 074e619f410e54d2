package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/roach88/hexagram/internal/normalize"
	"github.com/roach88/hexagram/internal/profile"
	"github.com/roach88/hexagram/internal/session"
)

// ProfileView is the JSON shape of a shown profile.
type ProfileView struct {
	Variant  string              `json:"variant"`
	SignedIn bool                `json:"signedIn"`
	Profile  profile.UserProfile `json:"profile"`
}

// SessionView is the JSON shape of the signed-in account.
type SessionView struct {
	Email  string   `json:"email"`
	UserID string   `json:"userId,omitempty"`
	Roles  []string `json:"roles,omitempty"`
	Plan   string   `json:"plan,omitempty"`
}

func newSessionView(s session.AuthSession) SessionView {
	return SessionView{Email: s.Email, UserID: s.UserID, Roles: s.Roles, Plan: s.Plan}
}

// renderProfile prints one aligned line per field. Fields outside the
// variant are marked with an asterisk.
func renderProfile(w io.Writer, v *profile.Variant, p profile.UserProfile) {
	for _, key := range profile.FieldKeys {
		value, _ := p.Get(key)
		mark := " "
		if _, ok := v.Field(key); !ok {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %-18s %s\n", mark, key, displayValue(key, value))
	}
	synced := "never"
	if p.LastSyncedAt != nil {
		synced = p.LastSyncedAt.UTC().Format(time.RFC3339)
	}
	fmt.Fprintf(w, "  %-18s %s\n", "lastSyncedAt", synced)
}

// displayValue adds the human name to codes the user may not recognize.
func displayValue(key, value string) string {
	if value == "" {
		return "-"
	}
	switch key {
	case profile.FieldRegion:
		if name := normalize.RegionName(value); name != "" {
			return fmt.Sprintf("%s (%s)", value, name)
		}
	case profile.FieldPreferredLanguage:
		for _, l := range normalize.Locales() {
			if l.Code == value {
				return fmt.Sprintf("%s (%s)", value, l.Label)
			}
		}
	}
	return value
}

// renderVariant prints a variant's fields as a table.
func renderVariant(w io.Writer, v *profile.Variant) {
	autoSync := "off"
	if v.AutoSync {
		autoSync = "on"
	}
	fmt.Fprintf(w, "Variant %s (auto-sync %s)\n\n", v.Name, autoSync)
	for _, f := range v.Fields {
		var rules []string
		if len(f.Domain) > 0 {
			rules = append(rules, strings.Join(f.Domain, "|"))
		}
		if f.Default != "" {
			rules = append(rules, "default "+f.Default)
		}
		if f.Min != nil && f.Max != nil {
			rules = append(rules, fmt.Sprintf("range %g-%g", *f.Min, *f.Max))
		}
		if f.Pattern != "" {
			rules = append(rules, "pattern "+f.Pattern)
		}
		line := fmt.Sprintf("  %-18s %-11s %s", f.Key, f.Kind, strings.Join(rules, ", "))
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
}
