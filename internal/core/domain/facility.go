package domain

import (
	"fmt"
	"strings"
)

// Facility is a healthcare facility record. It is immutable once ingested;
// the facility store owns its lifecycle.
type Facility struct {
	ID                string   `json:"facility_id" yaml:"facility_id"`
	Name              string   `json:"name" yaml:"name"`
	Region            string   `json:"region" yaml:"region"`
	District          string   `json:"district,omitempty" yaml:"district,omitempty"`
	Town              string   `json:"town,omitempty" yaml:"town,omitempty"`
	Type              string   `json:"type" yaml:"type"`
	Ownership         string   `json:"ownership,omitempty" yaml:"ownership,omitempty"`
	Latitude          float64  `json:"latitude" yaml:"latitude"`
	Longitude         float64  `json:"longitude" yaml:"longitude"`
	Beds              int      `json:"beds" yaml:"beds"`
	StaffCount        int      `json:"staff_count" yaml:"staff_count"`
	Specialties       []string `json:"specialties" yaml:"specialties"`
	Equipment         []string `json:"equipment" yaml:"equipment"`
	Services          []string `json:"services" yaml:"services"`
	OperationalStatus string   `json:"operational_status,omitempty" yaml:"operational_status,omitempty"`
	CapabilitiesText  string   `json:"capabilities_text,omitempty" yaml:"capabilities_text,omitempty"`
	Notes             string   `json:"notes,omitempty" yaml:"notes,omitempty"`
	LastInspection    string   `json:"last_inspection,omitempty" yaml:"last_inspection,omitempty"`
}

// CapabilityBreadth is the number of listed specialties, equipment and services.
func (f Facility) CapabilityBreadth() int {
	return len(f.Specialties) + len(f.Equipment) + len(f.Services)
}

// Text renders the facility as the document text that is embedded and shown
// to the language model. The layout is stable so rebuilt generations embed
// identical text for identical records.
func (f Facility) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Facility: %s (%s)\n", f.Name, f.ID)
	fmt.Fprintf(&b, "Type: %s | Ownership: %s\n", f.Type, f.Ownership)
	fmt.Fprintf(&b, "Location: %s, %s, %s Region\n", f.Town, f.District, f.Region)
	fmt.Fprintf(&b, "Beds: %d | Staff: %d | Status: %s\n", f.Beds, f.StaffCount, f.OperationalStatus)
	fmt.Fprintf(&b, "Specialties: %s\n", strings.Join(f.Specialties, ", "))
	fmt.Fprintf(&b, "Equipment: %s\n", strings.Join(f.Equipment, ", "))
	fmt.Fprintf(&b, "Services: %s\n", strings.Join(f.Services, ", "))
	if f.CapabilitiesText != "" {
		fmt.Fprintf(&b, "Capabilities: %s\n", f.CapabilitiesText)
	}
	if f.Notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", f.Notes)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Validate checks the fields the engine relies on.
func (f Facility) Validate() error {
	if strings.TrimSpace(f.ID) == "" {
		return fmt.Errorf("%w: facility id is required", ErrValidation)
	}
	if f.Beds < 0 || f.StaffCount < 0 {
		return fmt.Errorf("%w: facility %s has negative capacity", ErrValidation, f.ID)
	}
	return nil
}

// HasAny reports whether list contains any of the wanted values,
// compared case-insensitively.
func HasAny(list []string, wanted ...string) bool {
	for _, w := range wanted {
		for _, v := range list {
			if strings.EqualFold(v, w) {
				return true
			}
		}
	}
	return false
}
