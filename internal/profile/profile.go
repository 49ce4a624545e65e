package profile

import (
	"regexp"
	"strings"
)

// FieldType is the closed set of value kinds a profile field can declare.
type FieldType string

const (
	FieldNumber   FieldType = "number"
	FieldString   FieldType = "string"
	FieldEnum     FieldType = "enum"
	FieldRange    FieldType = "range"
	FieldCurrency FieldType = "currency"
	FieldBoolean  FieldType = "boolean"
)

// Validation holds optional numeric bounds and a regex pattern for a field.
type Validation struct {
	Min     *float64
	Max     *float64
	Pattern string

	patternRe *regexp.Regexp // compiled from Pattern at registry build
}

// FieldSchema declares one expected field of a domain profile.
type FieldSchema struct {
	ID          string
	Name        string
	Type        FieldType
	Required    bool
	Units       []string
	Enums       []string
	Validation  *Validation
	Description string
}

// Rule is a declarative profile rule (validation/normalization/extraction).
// Rules are carried for inspection; the pipeline's fixed steps implement the
// builtin ones directly.
type Rule struct {
	ID        string
	Type      string
	Condition string
	Action    string
	Priority  int
}

// DomainProfile is the static, versioned schema of expected fields for one
// document domain. Immutable after construction.
type DomainProfile struct {
	ID           string
	Domain       string
	Version      string
	Fields       []FieldSchema       // declaration order, used for row ordering
	Units        map[string][]string // fieldID -> accepted units (overrides field-level)
	Rules        []Rule
	SynonymsSeed map[string][]string

	byID map[string]*FieldSchema
}

// newProfile indexes fields by ID and pre-compiles validation patterns.
func newProfile(p DomainProfile) *DomainProfile {
	p.byID = make(map[string]*FieldSchema, len(p.Fields))
	for i := range p.Fields {
		f := &p.Fields[i]
		if f.Validation != nil && f.Validation.Pattern != "" {
			if re, err := regexp.Compile(f.Validation.Pattern); err == nil {
				f.Validation.patternRe = re
			}
		}
		p.byID[f.ID] = f
	}
	return &p
}

// Field returns the schema for the given field ID, or nil if undeclared.
func (p *DomainProfile) Field(id string) *FieldSchema {
	return p.byID[id]
}

// FieldIndex returns the declaration position of a field, or -1 if undeclared.
func (p *DomainProfile) FieldIndex(id string) int {
	for i := range p.Fields {
		if p.Fields[i].ID == id {
			return i
		}
	}
	return -1
}

// RequiredFields returns the IDs of all required fields in declaration order.
func (p *DomainProfile) RequiredFields() []string {
	var ids []string
	for _, f := range p.Fields {
		if f.Required {
			ids = append(ids, f.ID)
		}
	}
	return ids
}

// AcceptedUnits returns the accepted units for a field. The profile-level
// units table takes precedence over the field's own declaration.
func (p *DomainProfile) AcceptedUnits(fieldID string) []string {
	if units, ok := p.Units[fieldID]; ok {
		return units
	}
	if f := p.byID[fieldID]; f != nil {
		return f.Units
	}
	return nil
}

// GetProfile returns the builtin profile for a domain, or nil if the domain
// is unknown. Lookup is case-insensitive ("CHIP" and "Chip" both resolve).
func GetProfile(domain string) *DomainProfile {
	return builtin[strings.ToLower(strings.TrimSpace(domain))]
}

// Domains lists the registered domain names in a stable order.
func Domains() []string {
	return []string{DomainSaaS, DomainAPI, DomainChip}
}
