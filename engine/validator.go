// Package engine provides the FHIR validator built on a support chain.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	hcx "github.com/xtanion/integration-sdks"
	"github.com/xtanion/integration-sdks/phase"
	"github.com/xtanion/integration-sdks/pkg/logger"
	"github.com/xtanion/integration-sdks/support"
)

// Validator validates FHIR R4 JSON resources against the profiles held by
// its support chain. It is safe for concurrent use.
type Validator struct {
	support support.Support
	options *hcx.Options
	metrics *hcx.Metrics
	pipe    *pipeline
	log     *zap.Logger

	mu              sync.RWMutex
	defaultProfiles map[string]string
}

// New creates a Validator over sup.
func New(sup support.Support, opts ...hcx.Option) (*Validator, error) {
	if sup == nil {
		return nil, fmt.Errorf("engine: support chain is required")
	}

	options := hcx.DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	if err := options.Validate(); err != nil {
		return nil, fmt.Errorf("engine: invalid options: %w", err)
	}
	if options.Metrics == nil {
		options.Metrics = hcx.NewMetrics()
	}

	v := &Validator{
		support:         sup,
		options:         options,
		metrics:         options.Metrics,
		log:             logger.Named("engine"),
		defaultProfiles: make(map[string]string, len(options.DefaultProfiles)),
	}
	for rt, url := range options.DefaultProfiles {
		v.defaultProfiles[rt] = url
	}

	v.pipe = newPipeline(true, v.metrics)
	v.pipe.register(phase.NewStructurePhase(), PriorityFirst)
	v.pipe.register(phase.NewPrimitivePhase(), PriorityNormal)
	v.pipe.register(phase.NewCardinalityPhase(), PriorityNormal)
	v.pipe.register(phase.NewFixedPatternPhase(), PriorityNormal)
	v.pipe.register(phase.NewBindingPhase(), PriorityNormal)
	v.pipe.register(phase.NewConstraintsPhase(phase.NewEvaluator()), PriorityLast)

	return v, nil
}

// Validate validates a JSON resource. Malformed input yields an invalid
// result, never an error.
func (v *Validator) Validate(ctx context.Context, resource []byte) *hcx.Result {
	start := time.Now()

	var resourceMap map[string]any
	if err := json.Unmarshal(resource, &resourceMap); err != nil {
		result := hcx.NewResult()
		result.AddError(hcx.IssueTypeStructure, fmt.Sprintf("Invalid JSON: %v", err), "")
		return v.finish(result, start)
	}
	return v.validate(ctx, resource, resourceMap, start)
}

// ValidateMap validates a resource already decoded into a map.
func (v *Validator) ValidateMap(ctx context.Context, resourceMap map[string]any) *hcx.Result {
	start := time.Now()

	raw, err := json.Marshal(resourceMap)
	if err != nil {
		result := hcx.NewResult()
		result.AddError(hcx.IssueTypeStructure, fmt.Sprintf("Invalid resource: %v", err), "")
		return v.finish(result, start)
	}
	return v.validate(ctx, raw, resourceMap, start)
}

// ValidateBatch validates resources concurrently, at most WorkerCount at a
// time. Results are in input order.
func (v *Validator) ValidateBatch(ctx context.Context, resources [][]byte) []*hcx.Result {
	results := make([]*hcx.Result, len(resources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.options.WorkerCount)
	for i, resource := range resources {
		g.Go(func() error {
			results[i] = v.Validate(gctx, resource)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (v *Validator) validate(ctx context.Context, raw []byte, resourceMap map[string]any, start time.Time) *hcx.Result {
	result := hcx.NewResult()

	resourceType, _ := resourceMap["resourceType"].(string)
	if resourceType == "" {
		result.AddError(hcx.IssueTypeStructure, "Resource must have a 'resourceType' element", "")
		return v.finish(result, start)
	}
	result.ResourceType = resourceType

	profile, base, issues := v.selectProfile(ctx, resourceType, resourceMap)
	result.AddIssues(issues)
	if profile == nil {
		return v.finish(result, start)
	}
	result.Profile = profile.URL

	if profile.Type != "" && profile.Type != resourceType {
		result.AddError(hcx.IssueTypeInvalid,
			fmt.Sprintf("Profile '%s' is for resource type '%s', not '%s'", profile.URL, profile.Type, resourceType),
			resourceType)
		return v.finish(result, start)
	}

	pctx := &phase.Context{
		Resource:     raw,
		ResourceMap:  resourceMap,
		ResourceType: resourceType,
		Profile:      profile,
		Base:         base,
		Support:      v.support,
		Options:      v.options,
	}
	v.pipe.execute(ctx, pctx, result)

	return v.finish(result, start)
}

// selectProfile picks the profile to validate against: the first resolvable
// meta.profile, then the configured default for the type, then the core
// definition. base is the core definition, when available.
func (v *Validator) selectProfile(ctx context.Context, resourceType string, resourceMap map[string]any) (profile, base *support.StructureDefinition, issues []hcx.Issue) {
	coreURL := support.CoreProfileURL(resourceType)

	candidates := metaProfiles(resourceMap)
	for _, url := range candidates {
		sd, err := v.support.FetchStructureDefinition(ctx, url)
		if err != nil {
			issues = append(issues, hcx.NewIssue(hcx.SeverityWarning, hcx.IssueTypeNotFound).
				Diagnostics(fmt.Sprintf("Profile '%s' could not be resolved: %v", url, err)).
				At(resourceType + ".meta.profile").
				Build())
			continue
		}
		profile = sd
		break
	}

	if profile == nil {
		if url, ok := v.DefaultProfile(resourceType); ok {
			sd, err := v.support.FetchStructureDefinition(ctx, url)
			if err != nil {
				v.log.Warn("default profile not resolvable",
					zap.String("resourceType", resourceType),
					zap.String("profile", url),
					zap.Error(err))
			} else {
				profile = sd
			}
		}
	}

	core, err := v.support.FetchStructureDefinition(ctx, coreURL)
	if err == nil {
		base = core
	}
	if profile == nil {
		profile = base
	}
	if profile == nil {
		issues = append(issues, hcx.NewIssue(hcx.SeverityError, hcx.IssueTypeNotSupported).
			Diagnostics(fmt.Sprintf("No StructureDefinition found for resource type '%s'", resourceType)).
			At(resourceType).
			Build())
	}
	return profile, base, issues
}

func metaProfiles(resourceMap map[string]any) []string {
	meta, ok := resourceMap["meta"].(map[string]any)
	if !ok {
		return nil
	}
	list, ok := meta["profile"].([]any)
	if !ok {
		return nil
	}
	profiles := make([]string, 0, len(list))
	for _, p := range list {
		if url, ok := p.(string); ok && url != "" {
			profiles = append(profiles, url)
		}
	}
	return profiles
}

// finish applies StrictMode and MaxErrors, then records metrics.
func (v *Validator) finish(result *hcx.Result, start time.Time) *hcx.Result {
	out := result
	if v.options.StrictMode || v.options.MaxErrors > 0 {
		out = hcx.NewResult()
		out.ResourceType = result.ResourceType
		out.Profile = result.Profile

		errCount := 0
		truncated := false
		for _, iss := range result.Issues {
			if v.options.StrictMode && iss.Severity == hcx.SeverityWarning {
				iss.Severity = hcx.SeverityError
			}
			if iss.IsError() {
				if v.options.MaxErrors > 0 && errCount >= v.options.MaxErrors {
					truncated = true
					continue
				}
				errCount++
			}
			out.AddIssue(iss)
		}
		if truncated {
			out.AddIssue(hcx.NewIssue(hcx.SeverityInformation, hcx.IssueTypeTooCostly).
				Diagnostics(fmt.Sprintf("Validation stopped after %d errors", v.options.MaxErrors)).
				Build())
		}
	}

	duration := time.Since(start)
	v.metrics.RecordValidation(duration, out.Valid)
	for _, iss := range out.Issues {
		v.metrics.RecordIssue(iss.Severity)
	}
	v.log.Debug("resource validated",
		zap.String("resourceType", out.ResourceType),
		zap.String("profile", out.Profile),
		zap.Bool("valid", out.Valid),
		zap.Int("errors", out.ErrorCount()),
		zap.Duration("duration", duration))
	return out
}

// SetDefaultProfile sets the profile used for resourceType when a resource
// declares none.
func (v *Validator) SetDefaultProfile(resourceType, url string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.defaultProfiles[resourceType] = url
}

// DefaultProfile returns the default profile for resourceType.
func (v *Validator) DefaultProfile(resourceType string) (string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	url, ok := v.defaultProfiles[resourceType]
	return url, ok
}

// Support returns the chain the validator resolves definitions from.
func (v *Validator) Support() support.Support { return v.support }

// Options returns the validator's options.
func (v *Validator) Options() *hcx.Options { return v.options }

// Metrics returns the validator's metrics.
func (v *Validator) Metrics() *hcx.Metrics { return v.metrics }

// Phases returns the phase names in execution order.
func (v *Validator) Phases() []string { return v.pipe.phaseNames() }
