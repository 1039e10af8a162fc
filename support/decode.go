package support

import (
	"encoding/json"
	"fmt"

	"github.com/gofhir/fhir/r4"
)

// ResourceType reads the resourceType of a JSON resource.
func ResourceType(data []byte) (string, error) {
	var probe struct {
		ResourceType string `json:"resourceType"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return "", err
	}
	if probe.ResourceType == "" {
		return "", fmt.Errorf("missing resourceType")
	}
	return probe.ResourceType, nil
}

// AddResource decodes a StructureDefinition, ValueSet, CodeSystem or a
// Bundle of them into p. Other resource types are ignored and reported as
// not added.
func (p *PrePopulated) AddResource(data []byte) (added int, err error) {
	rt, err := ResourceType(data)
	if err != nil {
		return 0, err
	}

	switch rt {
	case "Bundle":
		var bundle struct {
			Entry []struct {
				Resource json.RawMessage `json:"resource"`
			} `json:"entry"`
		}
		if err := json.Unmarshal(data, &bundle); err != nil {
			return 0, fmt.Errorf("failed to parse Bundle: %w", err)
		}
		for _, e := range bundle.Entry {
			if len(e.Resource) == 0 {
				continue
			}
			n, err := p.AddResource(e.Resource)
			if err != nil {
				return added, err
			}
			added += n
		}
		return added, nil

	case "StructureDefinition":
		var sd r4.StructureDefinition
		if err := json.Unmarshal(data, &sd); err != nil {
			return 0, fmt.Errorf("failed to parse StructureDefinition: %w", err)
		}
		if err := p.AddStructureDefinition(FromR4(&sd)); err != nil {
			return 0, err
		}
		return 1, nil

	case "ValueSet":
		var vs r4.ValueSet
		if err := json.Unmarshal(data, &vs); err != nil {
			return 0, fmt.Errorf("failed to parse ValueSet: %w", err)
		}
		if err := p.AddValueSet(&vs); err != nil {
			return 0, err
		}
		return 1, nil

	case "CodeSystem":
		var cs r4.CodeSystem
		if err := json.Unmarshal(data, &cs); err != nil {
			return 0, fmt.Errorf("failed to parse CodeSystem: %w", err)
		}
		if err := p.AddCodeSystem(&cs); err != nil {
			return 0, err
		}
		return 1, nil
	}
	return 0, nil
}
