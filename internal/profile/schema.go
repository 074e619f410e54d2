package profile

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/hexagram/internal/normalize"
)

// FieldKind selects how a field is normalized and validated.
type FieldKind string

const (
	// KindFreeText is trimmed; an empty value takes Default. Pattern, if set, is enforced on save.
	KindFreeText FieldKind = "freeText"
	// KindEnumerated is an open, ordered domain (levels). Unknown values pass through.
	KindEnumerated FieldKind = "enumerated"
	// KindClosedEnum is a strict domain; anything else resolves to Default. Never empty.
	KindClosedEnum FieldKind = "closedEnum"
	// KindLanguage is a supported locale code.
	KindLanguage FieldKind = "language"
	// KindRegion is an ISO 3166-1 alpha-2 region code.
	KindRegion FieldKind = "region"
	// KindNumeric is a number kept as text; empty means unset. Min/Max bound it on save.
	KindNumeric FieldKind = "numeric"
)

// Default domains and values shared by the built-in variants.
var (
	PaidLevels        = []string{"free", "pro", "premium"}
	ServiceLevels     = []string{"free", "standard", "enterprise"}
	GenderPreferences = []string{"male", "female"}
)

const (
	DefaultDisplayName = "Hexagram 用户"
	DefaultLevel       = "free"
	DefaultLanguage    = "cn"
	DefaultRegion      = "CN"
	DefaultGenderPref  = "male"
	DisplayNamePattern = `^[\x{4e00}-\x{9fa5}A-Za-z0-9_ ]{2,16}$`
)

// Field declares one profile field of a form variant.
type Field struct {
	Key     string    `json:"key" yaml:"key"`
	Kind    FieldKind `json:"kind" yaml:"kind"`
	Domain  []string  `json:"domain,omitempty" yaml:"domain,omitempty"`
	Default string    `json:"default,omitempty" yaml:"default,omitempty"`
	Pattern string    `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Min     *float64  `json:"min,omitempty" yaml:"min,omitempty"`
	Max     *float64  `json:"max,omitempty" yaml:"max,omitempty"`

	re *regexp.Regexp
}

// Variant is one edit form: the fields it shows, normalizes, validates and
// syncs, and whether it auto-syncs edits.
type Variant struct {
	Name     string  `json:"name" yaml:"name"`
	AutoSync bool    `json:"autoSync" yaml:"autoSync"`
	Fields   []Field `json:"fields" yaml:"fields"`
}

// Compile checks the variant and prepares its patterns.
// Variants must be compiled before use; the built-ins already are.
func (v *Variant) Compile() error {
	if strings.TrimSpace(v.Name) == "" {
		return fmt.Errorf("variant: name is required")
	}
	if len(v.Fields) == 0 {
		return fmt.Errorf("variant %s: no fields", v.Name)
	}

	seen := make(map[string]bool, len(v.Fields))
	for i := range v.Fields {
		f := &v.Fields[i]
		if !IsField(f.Key) {
			return fmt.Errorf("variant %s: unknown field %q", v.Name, f.Key)
		}
		if seen[f.Key] {
			return fmt.Errorf("variant %s: duplicate field %q", v.Name, f.Key)
		}
		seen[f.Key] = true

		if err := f.check(); err != nil {
			return fmt.Errorf("variant %s: field %s: %w", v.Name, f.Key, err)
		}
	}
	return nil
}

func (f *Field) check() error {
	switch f.Kind {
	case KindFreeText, KindLanguage, KindRegion:
	case KindNumeric:
		if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
			return fmt.Errorf("min %v greater than max %v", *f.Min, *f.Max)
		}
	case KindEnumerated:
		if len(f.Domain) == 0 {
			return fmt.Errorf("enumerated field needs a domain")
		}
	case KindClosedEnum:
		if len(f.Domain) != 2 {
			return fmt.Errorf("closed enum needs exactly two members, got %d", len(f.Domain))
		}
		if normalize.ResolveClosed(f.Default, f.Domain, "") == "" {
			return fmt.Errorf("default %q is not in domain %v", f.Default, f.Domain)
		}
	default:
		return fmt.Errorf("unknown kind %q", f.Kind)
	}

	if f.Pattern != "" {
		re, err := regexp.Compile(f.Pattern)
		if err != nil {
			return fmt.Errorf("pattern: %w", err)
		}
		f.re = re
	}
	return nil
}

// Field returns the declaration for key, if the variant has it.
func (v *Variant) Field(key string) (Field, bool) {
	for _, f := range v.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// Normalize canonicalizes one value for this field.
func (f Field) Normalize(value string) string {
	switch f.Kind {
	case KindEnumerated:
		return normalize.Enumerated(value, f.Default, f.Domain)
	case KindClosedEnum:
		return normalize.ResolveClosed(value, f.Domain, f.Default)
	case KindLanguage:
		return normalize.Language(value)
	case KindRegion:
		return normalize.Region(value)
	case KindFreeText:
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			return f.Default
		}
		return trimmed
	default:
		return strings.TrimSpace(value)
	}
}

// Validate checks locally-owned constraints on a raw value.
// Empty free text and empty numbers are allowed.
func (f Field) Validate(value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}

	switch f.Kind {
	case KindFreeText:
		if f.re != nil && !f.re.MatchString(trimmed) {
			return &ValidationError{Field: f.Key, Value: trimmed, Reason: ReasonPattern}
		}
	case KindNumeric:
		n, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return &ValidationError{Field: f.Key, Value: trimmed, Reason: ReasonNotNumber}
		}
		if (f.Min != nil && n < *f.Min) || (f.Max != nil && n > *f.Max) {
			return &ValidationError{Field: f.Key, Value: trimmed, Reason: ReasonOutOfRange}
		}
	}
	return nil
}

// Normalize returns p with every field of the variant canonicalized.
// Fields outside the variant are left untouched.
func (v *Variant) Normalize(p UserProfile) UserProfile {
	out := p.clone()
	for _, f := range v.Fields {
		raw, _ := out.Get(f.Key)
		_ = out.Set(f.Key, f.Normalize(raw))
	}
	return out
}

// Validate returns the first *ValidationError among the variant's fields.
func (v *Variant) Validate(p UserProfile) error {
	for _, f := range v.Fields {
		raw, _ := p.Get(f.Key)
		if err := f.Validate(raw); err != nil {
			return err
		}
	}
	return nil
}

// Merge overlays remote values onto local. A remote field wins when it is
// present and non-empty; otherwise the local value is kept. The result is
// normalized. LastSyncedAt is carried over from local.
func (v *Variant) Merge(local UserProfile, remote Remote) UserProfile {
	merged := local.clone()
	for _, f := range v.Fields {
		value, ok := remote[f.Key]
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		_ = merged.Set(f.Key, value)
	}
	return v.Normalize(merged)
}

// Payload returns the normalized wire body for a save.
func (v *Variant) Payload(p UserProfile) map[string]string {
	normalized := v.Normalize(p)
	payload := make(map[string]string, len(v.Fields))
	for _, f := range v.Fields {
		payload[f.Key], _ = normalized.Get(f.Key)
	}
	return payload
}

// Apply copies the variant's fields from src into dst.
func (v *Variant) Apply(dst *UserProfile, src UserProfile) {
	for _, f := range v.Fields {
		value, _ := src.Get(f.Key)
		_ = dst.Set(f.Key, value)
	}
}

// Changed reports whether any of the variant's fields differ between a and b.
func (v *Variant) Changed(a, b UserProfile) bool {
	for _, f := range v.Fields {
		av, _ := a.Get(f.Key)
		bv, _ := b.Get(f.Key)
		if av != bv {
			return true
		}
	}
	return false
}

func floatPtr(v float64) *float64 { return &v }

func displayNameField() Field {
	return Field{Key: FieldDisplayName, Kind: KindFreeText, Default: DefaultDisplayName, Pattern: DisplayNamePattern}
}

func levelFields() []Field {
	return []Field{
		{Key: FieldPaidLevel, Kind: KindEnumerated, Domain: PaidLevels, Default: DefaultLevel},
		{Key: FieldServiceLevel, Kind: KindEnumerated, Domain: ServiceLevels, Default: DefaultLevel},
	}
}

// Standard is the full edit form: identity, demographics, locale and levels.
func Standard() *Variant {
	v := &Variant{
		Name: "standard",
		Fields: append([]Field{
			displayNameField(),
			{Key: FieldGender, Kind: KindFreeText},
			{Key: FieldAge, Kind: KindNumeric, Min: floatPtr(1), Max: floatPtr(120)},
			{Key: FieldPreferredLanguage, Kind: KindLanguage},
			{Key: FieldRegion, Kind: KindRegion},
		}, levelFields()...),
	}
	mustCompile(v)
	return v
}

// Matching is the matchmaking form. It needs a concrete gender preference
// and saves edits automatically.
func Matching() *Variant {
	v := &Variant{
		Name:     "matching",
		AutoSync: true,
		Fields: append([]Field{
			displayNameField(),
			{Key: FieldPreferredLanguage, Kind: KindLanguage},
			{Key: FieldGenderPreference, Kind: KindClosedEnum, Domain: GenderPreferences, Default: DefaultGenderPref},
			{Key: FieldRegion, Kind: KindRegion},
		}, levelFields()...),
	}
	mustCompile(v)
	return v
}

// BuiltinVariants returns the variants shipped with the client, by name.
func BuiltinVariants() map[string]*Variant {
	return map[string]*Variant{
		"standard": Standard(),
		"matching": Matching(),
	}
}

func mustCompile(v *Variant) {
	if err := v.Compile(); err != nil {
		panic(err)
	}
}
