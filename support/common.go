package support

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/gofhir/fhir/r4"
)

// Well-known code system URLs handled by CommonCodeSystems.
const (
	SystemLanguages  = "urn:ietf:bcp:47"
	SystemMimeTypes  = "urn:ietf:bcp:13"
	SystemCurrencies = "urn:iso:std:iso:4217"
	SystemCountries  = "urn:iso:std:iso:3166"
	SystemUCUM       = "http://unitsofmeasure.org"
)

var (
	bcp47Pattern    = regexp.MustCompile(`^[a-zA-Z]{2,3}(-[a-zA-Z0-9]{2,8})*$`)
	mimeTypePattern = regexp.MustCompile(`^[a-z]+/[a-zA-Z0-9.+\-]+(;.*)?$`)
	ucumPattern     = regexp.MustCompile(`^[^\s]+$`)
)

// commonSystem is either an enumerated code list or a grammar check.
type commonSystem struct {
	url   string
	codes map[string]string
	match *regexp.Regexp
}

func (s *commonSystem) lookup(code string) (string, bool) {
	if s.codes != nil {
		display, ok := s.codes[code]
		return display, ok
	}
	return "", s.match.MatchString(code)
}

// CommonCodeSystems validates codes from code systems too large or too
// grammar-based to ship as definitions (languages, mime types, currencies,
// UCUM units) plus a handful of small FHIR administrative code systems.
type CommonCodeSystems struct {
	systems   map[string]*commonSystem
	valueSets map[string]string // value set url -> system url
}

// NewCommonCodeSystems creates the module with its built-in tables.
func NewCommonCodeSystems() *CommonCodeSystems {
	c := &CommonCodeSystems{
		systems:   make(map[string]*commonSystem),
		valueSets: make(map[string]string),
	}

	c.addPattern(SystemLanguages, bcp47Pattern,
		"http://hl7.org/fhir/ValueSet/languages",
		"http://hl7.org/fhir/ValueSet/all-languages")
	c.addPattern(SystemMimeTypes, mimeTypePattern, "http://hl7.org/fhir/ValueSet/mimetypes")
	c.addPattern(SystemUCUM, ucumPattern, "http://hl7.org/fhir/ValueSet/ucum-units")

	c.addCodes(SystemCurrencies, "http://hl7.org/fhir/ValueSet/currencies", map[string]string{
		"INR": "Indian rupee",
		"USD": "United States dollar",
		"EUR": "Euro",
		"GBP": "Pound sterling",
		"JPY": "Japanese yen",
		"AED": "United Arab Emirates dirham",
		"SGD": "Singapore dollar",
		"AUD": "Australian dollar",
		"CAD": "Canadian dollar",
		"CHF": "Swiss franc",
		"CNY": "Renminbi",
		"LKR": "Sri Lankan rupee",
		"NPR": "Nepalese rupee",
		"BDT": "Bangladeshi taka",
	})
	c.addCodes(SystemCountries, "http://hl7.org/fhir/ValueSet/iso3166-1-2", map[string]string{
		"IN": "India",
		"US": "United States of America",
		"GB": "United Kingdom",
		"AE": "United Arab Emirates",
		"SG": "Singapore",
		"LK": "Sri Lanka",
		"NP": "Nepal",
		"BD": "Bangladesh",
		"BT": "Bhutan",
		"AU": "Australia",
		"CA": "Canada",
		"DE": "Germany",
		"FR": "France",
		"JP": "Japan",
	})

	c.addCodes("http://hl7.org/fhir/administrative-gender", "http://hl7.org/fhir/ValueSet/administrative-gender", map[string]string{
		"male":    "Male",
		"female":  "Female",
		"other":   "Other",
		"unknown": "Unknown",
	})
	c.addCodes("http://hl7.org/fhir/contact-point-system", "http://hl7.org/fhir/ValueSet/contact-point-system", map[string]string{
		"phone": "Phone",
		"fax":   "Fax",
		"email": "Email",
		"pager": "Pager",
		"url":   "URL",
		"sms":   "SMS",
		"other": "Other",
	})
	c.addCodes("http://hl7.org/fhir/contact-point-use", "http://hl7.org/fhir/ValueSet/contact-point-use", map[string]string{
		"home":   "Home",
		"work":   "Work",
		"temp":   "Temp",
		"old":    "Old",
		"mobile": "Mobile",
	})
	c.addCodes("http://hl7.org/fhir/name-use", "http://hl7.org/fhir/ValueSet/name-use", map[string]string{
		"usual":     "Usual",
		"official":  "Official",
		"temp":      "Temp",
		"nickname":  "Nickname",
		"anonymous": "Anonymous",
		"old":       "Old",
		"maiden":    "Name changed for Marriage",
	})
	c.addCodes("http://hl7.org/fhir/address-use", "http://hl7.org/fhir/ValueSet/address-use", map[string]string{
		"home":    "Home",
		"work":    "Work",
		"temp":    "Temporary",
		"old":     "Old / Incorrect",
		"billing": "Billing",
	})
	c.addCodes("http://hl7.org/fhir/address-type", "http://hl7.org/fhir/ValueSet/address-type", map[string]string{
		"postal":   "Postal",
		"physical": "Physical",
		"both":     "Postal & Physical",
	})
	c.addCodes("http://hl7.org/fhir/identifier-use", "http://hl7.org/fhir/ValueSet/identifier-use", map[string]string{
		"usual":     "Usual",
		"official":  "Official",
		"temp":      "Temp",
		"secondary": "Secondary",
		"old":       "Old",
	})
	c.addCodes("http://hl7.org/fhir/publication-status", "http://hl7.org/fhir/ValueSet/publication-status", map[string]string{
		"draft":   "Draft",
		"active":  "Active",
		"retired": "Retired",
		"unknown": "Unknown",
	})
	c.addCodes("http://hl7.org/fhir/bundle-type", "http://hl7.org/fhir/ValueSet/bundle-type", map[string]string{
		"document":             "Document",
		"message":              "Message",
		"transaction":          "Transaction",
		"transaction-response": "Transaction Response",
		"batch":                "Batch",
		"batch-response":       "Batch Response",
		"history":              "History List",
		"searchset":            "Search Results",
		"collection":           "Collection",
	})
	return c
}

func (c *CommonCodeSystems) addPattern(system string, re *regexp.Regexp, valueSets ...string) {
	c.systems[system] = &commonSystem{url: system, match: re}
	for _, vs := range valueSets {
		c.valueSets[vs] = system
	}
}

func (c *CommonCodeSystems) addCodes(system, valueSet string, codes map[string]string) {
	c.systems[system] = &commonSystem{url: system, codes: codes}
	c.valueSets[valueSet] = system
}

// Name implements Support.
func (c *CommonCodeSystems) Name() string { return "common-code-systems" }

// FetchStructureDefinition always defers.
func (c *CommonCodeSystems) FetchStructureDefinition(context.Context, string) (*StructureDefinition, error) {
	return nil, ErrNotFound
}

// FetchValueSet always defers.
func (c *CommonCodeSystems) FetchValueSet(context.Context, string) (*r4.ValueSet, error) {
	return nil, ErrNotFound
}

// FetchCodeSystem materialises enumerated systems as CodeSystem resources
// so value sets elsewhere in the chain can include them.
func (c *CommonCodeSystems) FetchCodeSystem(_ context.Context, url string) (*r4.CodeSystem, error) {
	sys, ok := c.systems[Canonical(url)]
	if !ok || sys.codes == nil {
		return nil, ErrNotFound
	}

	codes := make([]string, 0, len(sys.codes))
	for code := range sys.codes {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	csURL := sys.url
	cs := &r4.CodeSystem{Url: &csURL}
	for _, code := range codes {
		code, display := code, sys.codes[code]
		cs.Concept = append(cs.Concept, r4.CodeSystemConcept{Code: &code, Display: &display})
	}
	return cs, nil
}

// ValidateCode answers for the systems and value sets listed above and
// defers everything else.
func (c *CommonCodeSystems) ValidateCode(ctx context.Context, _ Support, system, code, valueSetURL string) (*CodeResult, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	target := system
	if valueSetURL != "" {
		vsSystem, ok := c.valueSets[Canonical(valueSetURL)]
		if !ok {
			return nil, ErrNotSupported
		}
		if system != "" && system != vsSystem {
			return &CodeResult{
				Valid:   false,
				System:  system,
				Code:    code,
				Message: fmt.Sprintf("system '%s' is not part of ValueSet '%s'", system, valueSetURL),
			}, nil
		}
		target = vsSystem
	}

	sys, ok := c.systems[Canonical(target)]
	if !ok {
		return nil, ErrNotSupported
	}

	display, found := sys.lookup(code)
	if !found {
		return &CodeResult{
			Valid:   false,
			System:  sys.url,
			Code:    code,
			Message: fmt.Sprintf("code '%s' is not valid in '%s'", code, sys.url),
		}, nil
	}
	return &CodeResult{Valid: true, System: sys.url, Code: code, Display: display}, nil
}
