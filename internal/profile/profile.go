package profile

import (
	"fmt"
	"time"
)

// Field keys, as used on the wire and in variant files.
const (
	FieldDisplayName       = "displayName"
	FieldGender            = "gender"
	FieldAge               = "age"
	FieldPreferredLanguage = "preferredLanguage"
	FieldGenderPreference  = "genderPreference"
	FieldRegion            = "region"
	FieldPaidLevel         = "paidLevel"
	FieldServiceLevel      = "serviceLevel"
)

// FieldKeys lists every editable profile field in display order.
var FieldKeys = []string{
	FieldDisplayName,
	FieldGender,
	FieldAge,
	FieldPreferredLanguage,
	FieldGenderPreference,
	FieldRegion,
	FieldPaidLevel,
	FieldServiceLevel,
}

// UserProfile is the locally cached profile.
//
// LastSyncedAt is only ever set by the sync engine after the remote service
// confirmed a load or save.
type UserProfile struct {
	DisplayName       string     `json:"displayName"`
	Gender            string     `json:"gender"`
	Age               string     `json:"age"`
	PreferredLanguage string     `json:"preferredLanguage"`
	GenderPreference  string     `json:"genderPreference"`
	Region            string     `json:"region"`
	PaidLevel         string     `json:"paidLevel"`
	ServiceLevel      string     `json:"serviceLevel"`
	LastSyncedAt      *time.Time `json:"lastSyncedAt,omitempty"`
}

// Remote holds the fields present in a remote profile response.
// Absent fields have no key.
type Remote map[string]string

// Get returns the value of a field by key.
func (p UserProfile) Get(key string) (string, error) {
	ptr := p.field(key)
	if ptr == nil {
		return "", fmt.Errorf("unknown profile field %q", key)
	}
	return *ptr, nil
}

// Set assigns a field by key.
func (p *UserProfile) Set(key, value string) error {
	ptr := p.field(key)
	if ptr == nil {
		return fmt.Errorf("unknown profile field %q", key)
	}
	*ptr = value
	return nil
}

// IsField reports whether key names an editable profile field.
func IsField(key string) bool {
	var p UserProfile
	return p.field(key) != nil
}

func (p *UserProfile) field(key string) *string {
	switch key {
	case FieldDisplayName:
		return &p.DisplayName
	case FieldGender:
		return &p.Gender
	case FieldAge:
		return &p.Age
	case FieldPreferredLanguage:
		return &p.PreferredLanguage
	case FieldGenderPreference:
		return &p.GenderPreference
	case FieldRegion:
		return &p.Region
	case FieldPaidLevel:
		return &p.PaidLevel
	case FieldServiceLevel:
		return &p.ServiceLevel
	default:
		return nil
	}
}

// clone returns a copy that shares no pointers with p.
func (p UserProfile) clone() UserProfile {
	if p.LastSyncedAt != nil {
		ts := *p.LastSyncedAt
		p.LastSyncedAt = &ts
	}
	return p
}
