package support

import (
	"encoding/json"
	"strings"

	"github.com/gofhir/fhir/r4"
)

// FromR4 converts a parsed r4.StructureDefinition.
func FromR4(sd *r4.StructureDefinition) *StructureDefinition {
	if sd == nil {
		return nil
	}

	out := &StructureDefinition{
		URL:            deref(sd.Url),
		Name:           deref(sd.Name),
		Type:           deref(sd.Type),
		BaseDefinition: deref(sd.BaseDefinition),
	}
	if sd.Kind != nil {
		out.Kind = string(*sd.Kind)
	}
	if sd.Abstract != nil {
		out.Abstract = *sd.Abstract
	}
	if sd.FhirVersion != nil {
		out.FHIRVersion = string(*sd.FhirVersion)
	}
	if sd.Snapshot != nil {
		out.Snapshot = convertElements(sd.Snapshot.Element)
	}
	if sd.Differential != nil {
		out.Differential = convertElements(sd.Differential.Element)
	}
	return out
}

func convertElements(elements []r4.ElementDefinition) []ElementDefinition {
	if len(elements) == 0 {
		return nil
	}
	out := make([]ElementDefinition, 0, len(elements))
	for i := range elements {
		out = append(out, convertElement(&elements[i]))
	}
	return out
}

func convertElement(ed *r4.ElementDefinition) ElementDefinition {
	el := ElementDefinition{
		ID:        deref(ed.Id),
		Path:      deref(ed.Path),
		SliceName: deref(ed.SliceName),
		Max:       deref(ed.Max),
	}
	if ed.Min != nil {
		el.Min = int(*ed.Min)
	}
	if ed.MustSupport != nil {
		el.MustSupport = *ed.MustSupport
	}

	for i := range ed.Type {
		t := &ed.Type[i]
		el.Types = append(el.Types, TypeRef{
			Code:          deref(t.Code),
			Profile:       t.Profile,
			TargetProfile: t.TargetProfile,
		})
	}

	if b := ed.Binding; b != nil {
		el.Binding = &Binding{
			ValueSet:    deref(b.ValueSet),
			Description: deref(b.Description),
		}
		if b.Strength != nil {
			el.Binding.Strength = string(*b.Strength)
		}
	}

	for i := range ed.Constraint {
		c := &ed.Constraint[i]
		con := Constraint{
			Key:        deref(c.Key),
			Human:      deref(c.Human),
			Expression: deref(c.Expression),
			Source:     deref(c.Source),
		}
		if c.Severity != nil {
			con.Severity = string(*c.Severity)
		}
		el.Constraints = append(el.Constraints, con)
	}

	if s := ed.Slicing; s != nil {
		sl := &Slicing{}
		if s.Ordered != nil {
			sl.Ordered = *s.Ordered
		}
		if s.Rules != nil {
			sl.Rules = string(*s.Rules)
		}
		for i := range s.Discriminator {
			d := &s.Discriminator[i]
			disc := Discriminator{Path: deref(d.Path)}
			if d.Type != nil {
				disc.Type = string(*d.Type)
			}
			sl.Discriminator = append(sl.Discriminator, disc)
		}
		el.Slicing = sl
	}

	el.Fixed, el.Pattern = choiceValues(ed)
	return el
}

// choiceValues pulls fixed[x] and pattern[x] out of an element in their
// JSON form, so they compare directly against decoded resource content.
func choiceValues(ed *r4.ElementDefinition) (fixed, pattern any) {
	raw, err := json.Marshal(ed)
	if err != nil {
		return nil, nil
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, nil
	}
	for k, v := range fields {
		switch {
		case strings.HasPrefix(k, "fixed") && len(k) > len("fixed"):
			fixed = v
		case strings.HasPrefix(k, "pattern") && len(k) > len("pattern"):
			pattern = v
		}
	}
	return fixed, pattern
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
