package validation

import (
	"archive/zip"
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sharedProfileURL = "https://example.org/StructureDefinition/shared"

// igServer serves a definitions archive at each registered path.
type igServer struct {
	*httptest.Server

	mu       sync.Mutex
	archives map[string][]byte
	paths    []string
	requests atomic.Int32
}

func newIGServer(t *testing.T) *igServer {
	t.Helper()
	s := &igServer{archives: make(map[string][]byte)}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		s.mu.Lock()
		s.paths = append(s.paths, r.URL.Path)
		body, ok := s.archives[r.URL.Path]
		s.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write(body)
	}))
	t.Cleanup(s.Close)
	return s
}

// publish serves body at path and returns its URL.
func (s *igServer) publish(path string, body []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archives[path] = body
	return s.URL + path
}

// requested returns the paths requested so far, sorted.
func (s *igServer) requested() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := append([]string(nil), s.paths...)
	sort.Strings(paths)
	return paths
}

func zipOf(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func structureDefinition(url, name, resourceType string, required ...string) string {
	elements := []string{fmt.Sprintf(`{"id": %q, "path": %q, "min": 0, "max": "*"}`, resourceType, resourceType)}
	for _, el := range required {
		path := resourceType + "." + el
		elements = append(elements, fmt.Sprintf(`{"id": %q, "path": %q, "min": 1, "max": "1"}`, path, path))
	}
	return fmt.Sprintf(`{
		"resourceType": "StructureDefinition",
		"url": %q,
		"name": %q,
		"status": "active",
		"kind": "resource",
		"abstract": false,
		"type": %q,
		"baseDefinition": "http://hl7.org/fhir/StructureDefinition/%s",
		"derivation": "constraint",
		"snapshot": {"element": [%s]}
	}`, url, name, resourceType, resourceType, strings.Join(elements, ","))
}

const planTypeValueSet = `{
	"resourceType": "ValueSet",
	"url": "https://nrces.in/ndhm/fhir/r4/ValueSet/ndhm-plan-type",
	"status": "active",
	"compose": {"include": [{"system": "https://nrces.in/ndhm/fhir/r4/CodeSystem/ndhm-plan-type", "concept": [{"code": "01"}, {"code": "02"}]}]}
}`

// publishGuides serves a well-formed HCX and NRCES pair and returns their
// base paths.
func publishGuides(t *testing.T, s *igServer) (hcxBase, nrcesBase string) {
	t.Helper()
	hcxBase = s.URL + "/hcx/"
	nrcesBase = s.URL + "/nrces/"

	s.publish("/hcx/", zipOf(t, map[string]string{
		"StructureDefinition-HCXInsurancePlan.json": structureDefinition(hcxBase+InsurancePlanProfile, "HCXInsurancePlan", "InsurancePlan", "status", "name"),
		"StructureDefinition-Shared.json":           structureDefinition(sharedProfileURL, "HCXShared", "Coverage"),
		"ImplementationGuide-hcx.json":              `{"resourceType": "ImplementationGuide"}`,
	}))
	s.publish("/nrces/", zipOf(t, map[string]string{
		"StructureDefinition-Shared.json": structureDefinition(sharedProfileURL, "NRCESShared", "Coverage"),
		"ValueSet-ndhm-plan-type.json":    planTypeValueSet,
		"readme.txt":                      "NRCES definitions",
	}))
	return hcxBase, nrcesBase
}

func newTestBuilder(t *testing.T, opts ...BuilderOption) *Builder {
	t.Helper()
	opts = append([]BuilderOption{WithWorkDir(t.TempDir()), WithLogger(zap.NewNop())}, opts...)
	return NewBuilder(opts...)
}
