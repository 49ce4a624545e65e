package profile

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var leadingNumber = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// numericValue pulls the first number out of a raw value so unit-suffixed
// readings like "3.3V" or "120 ms" still validate against bounds.
func numericValue(value string) (float64, bool) {
	m := leadingNumber.FindString(strings.TrimSpace(value))
	if m == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(m, 64)
	return n, err == nil
}

// ValidationResult collects every violation found for one value. Valid is
// true only when Errors is empty.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// ValidateFieldValue checks a value (and optional unit) against the profile's
// declaration for fieldID. All applicable checks run; violations accumulate
// rather than short-circuiting.
func ValidateFieldValue(p *DomainProfile, fieldID, value, unit string) ValidationResult {
	field := p.Field(fieldID)
	if field == nil {
		return ValidationResult{Valid: false, Errors: []string{fmt.Sprintf("Unknown field: %s", fieldID)}}
	}

	var errs []string

	if field.Type == FieldNumber || field.Type == FieldRange {
		num, ok := numericValue(value)
		if !ok {
			errs = append(errs, fmt.Sprintf("Expected number for %s, got: %s", field.Name, value))
		} else if v := field.Validation; v != nil {
			if v.Min != nil && num < *v.Min {
				errs = append(errs, fmt.Sprintf("%s below minimum (%g): %g", field.Name, *v.Min, num))
			}
			if v.Max != nil && num > *v.Max {
				errs = append(errs, fmt.Sprintf("%s above maximum (%g): %g", field.Name, *v.Max, num))
			}
		}
	}

	if field.Type == FieldEnum && len(field.Enums) > 0 {
		if !contains(field.Enums, value) {
			errs = append(errs, fmt.Sprintf("Invalid enum value for %s: %s. Expected: %s",
				field.Name, value, strings.Join(field.Enums, ", ")))
		}
	}

	if unit != "" {
		accepted := p.AcceptedUnits(fieldID)
		if len(accepted) > 0 && !contains(accepted, unit) {
			errs = append(errs, fmt.Sprintf("Invalid unit for %s: %s. Expected: %s",
				field.Name, unit, strings.Join(accepted, ", ")))
		}
	}

	if field.Validation != nil && field.Validation.patternRe != nil {
		if !field.Validation.patternRe.MatchString(value) {
			errs = append(errs, fmt.Sprintf("%s does not match required pattern: %s", field.Name, value))
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// GetFieldSuggestions returns fields whose name, ID, or seed synonyms contain
// the partial term (case-insensitive). Exact name/ID matches rank first, the
// remainder sorts alphabetically by display name.
func GetFieldSuggestions(p *DomainProfile, partialName string) []FieldSchema {
	partial := strings.ToLower(strings.TrimSpace(partialName))

	var matched []FieldSchema
	for _, f := range p.Fields {
		if strings.Contains(strings.ToLower(f.Name), partial) ||
			strings.Contains(strings.ToLower(f.ID), partial) ||
			seedContains(p.SynonymsSeed[f.ID], partial) {
			matched = append(matched, f)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		iExact := exactMatch(matched[i], partial)
		jExact := exactMatch(matched[j], partial)
		if iExact != jExact {
			return iExact
		}
		return matched[i].Name < matched[j].Name
	})

	return matched
}

func exactMatch(f FieldSchema, partial string) bool {
	return strings.ToLower(f.Name) == partial || strings.ToLower(f.ID) == partial
}

func seedContains(seeds []string, partial string) bool {
	for _, s := range seeds {
		if strings.Contains(strings.ToLower(s), partial) {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
