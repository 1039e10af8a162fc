// Package specs embeds the FHIR R4 base definitions the validator falls
// back to when an implementation guide does not carry its own copy:
//   - profiles-resources.json: core resource StructureDefinitions
//   - valuesets.json: core ValueSets and the CodeSystems they include
//
// Both files are FHIR Bundles of type collection.
package specs

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed r4/*.json
var r4Specs embed.FS

// Dir is the directory inside FS holding the R4 files.
const Dir = "r4"

// File names.
const (
	ProfilesResources = "profiles-resources.json"
	ValueSets         = "valuesets.json"
)

// FS returns the embedded filesystem.
func FS() fs.FS { return r4Specs }

// ListFiles returns the names of the embedded files.
func ListFiles() ([]string, error) {
	entries, err := r4Specs.ReadDir(Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", Dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, entry.Name())
		}
	}
	return files, nil
}

// ReadFile reads one embedded file by name.
func ReadFile(name string) ([]byte, error) {
	path := Dir + "/" + name
	data, err := r4Specs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// HasFile reports whether name is embedded.
func HasFile(name string) bool {
	_, err := r4Specs.ReadFile(Dir + "/" + name)
	return err == nil
}
