// Package validation builds FHIR validators from the HCX and NRCES
// implementation guide bundles and caches one validator per pair of guides.
//
// A build downloads both definition archives, extracts them into a
// per-pair directory, loads their profiles and value sets, and assembles
// the support chain:
//
//	base definitions → common code systems → in-memory terminology → custom profiles
//
// wrapped in a caching layer. Any failure aborts the build with a
// *SetupError; a partially built validator is never returned.
package validation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	hcx "github.com/xtanion/integration-sdks"
	"github.com/xtanion/integration-sdks/bundle"
	"github.com/xtanion/integration-sdks/engine"
	"github.com/xtanion/integration-sdks/pkg/logger"
	"github.com/xtanion/integration-sdks/profile"
	"github.com/xtanion/integration-sdks/support"
)

// Local names of the downloaded archives and their extraction directories.
const (
	HCXArchive   = "hcx_definitions.zip"
	NRCESArchive = "nrces_definitions.zip"
	HCXDir       = "hcx_definitions"
	NRCESDir     = "nrces_definitions"

	// PublishedArchive is the definitions download of a published IG,
	// for use with WithArchiveName.
	PublishedArchive = "definitions.json.zip"

	// InsurancePlanProfile is the HCX profile used for InsurancePlan
	// resources that declare no profile.
	InsurancePlanProfile = "StructureDefinition-HCXInsurancePlan.html"
)

// keyNamespace scopes the UUIDv5 directory names of build keys.
var keyNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://hcxprotocol.io/integrator/validation"))

// Key identifies a validator by its pair of implementation guides.
type Key struct {
	HCX   string
	NRCES string
}

func (k Key) String() string { return "(" + k.HCX + ", " + k.NRCES + ")" }

// ID is a stable directory-safe identifier of the pair.
func (k Key) ID() string {
	return uuid.NewSHA1(keyNamespace, []byte(k.HCX+"\x00"+k.NRCES)).String()
}

// ArchiveURL returns where the definitions archive of an IG is fetched
// from. With no archive name the base path is the archive. Otherwise the
// named archive is fetched under the base path, unless the base path
// already names a zip.
func ArchiveURL(basePath, archive string) string {
	if archive == "" || strings.HasSuffix(strings.ToLower(basePath), ".zip") {
		return basePath
	}
	if !strings.HasSuffix(basePath, "/") {
		basePath += "/"
	}
	return basePath + archive
}

// Archives are the local paths of a downloaded pair.
type Archives struct {
	HCX   string
	NRCES string
}

// Dirs are the extraction directories of a pair.
type Dirs struct {
	HCX   string
	NRCES string
}

// Bundles are the definitions loaded from a pair.
type Bundles struct {
	HCX   *profile.Set
	NRCES *profile.Set
}

// Builder builds validators. It is safe for concurrent use; builds of
// different keys use separate directories.
type Builder struct {
	workDir    string
	archive    string
	fetcher    *bundle.Fetcher
	extractor  *bundle.Extractor
	loader     *profile.Loader
	base       *support.BaseDefinitions
	cacheSize  int
	engineOpts []hcx.Option
	log        *zap.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithWorkDir sets the directory under which bundles are stored.
func WithWorkDir(dir string) BuilderOption {
	return func(b *Builder) { b.workDir = dir }
}

// WithArchiveName fetches each archive as name under its IG base path,
// such as PublishedArchive for guides published by the IG publisher. By
// default the base path itself is fetched.
func WithArchiveName(name string) BuilderOption {
	return func(b *Builder) { b.archive = name }
}

// WithFetcher sets the archive fetcher.
func WithFetcher(f *bundle.Fetcher) BuilderOption {
	return func(b *Builder) { b.fetcher = f }
}

// WithExtractor sets the archive extractor.
func WithExtractor(e *bundle.Extractor) BuilderOption {
	return func(b *Builder) { b.extractor = e }
}

// WithLoader sets the profile loader.
func WithLoader(l *profile.Loader) BuilderOption {
	return func(b *Builder) { b.loader = l }
}

// WithBaseDefinitions shares a core definitions module between builders.
func WithBaseDefinitions(base *support.BaseDefinitions) BuilderOption {
	return func(b *Builder) { b.base = base }
}

// WithCacheSize bounds each cache of the chain's caching layer.
func WithCacheSize(n int) BuilderOption {
	return func(b *Builder) { b.cacheSize = n }
}

// WithEngineOptions passes options to every validator built.
func WithEngineOptions(opts ...hcx.Option) BuilderOption {
	return func(b *Builder) { b.engineOpts = append(b.engineOpts, opts...) }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) BuilderOption {
	return func(b *Builder) { b.log = l }
}

// NewBuilder creates a Builder. The work directory defaults to the
// process working directory.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{}
	for _, opt := range opts {
		opt(b)
	}
	b.log = logger.Or(b.log, "validation")
	if b.workDir == "" {
		if wd, err := os.Getwd(); err == nil {
			b.workDir = wd
		} else {
			b.workDir = os.TempDir()
		}
	}
	if b.fetcher == nil {
		b.fetcher = bundle.NewFetcher(bundle.WithFetchLogger(b.log))
	}
	if b.extractor == nil {
		b.extractor = bundle.NewExtractor(bundle.WithExtractLogger(b.log))
	}
	if b.loader == nil {
		b.loader = profile.NewLoader(profile.WithLogger(b.log))
	}
	if b.base == nil {
		b.base = support.NewBaseDefinitions(b.log)
	}
	return b
}

// WorkDir returns the root of the bundle directories.
func (b *Builder) WorkDir() string { return b.workDir }

// ArchiveURL returns the URL the archive of the IG at basePath is fetched
// from.
func (b *Builder) ArchiveURL(basePath string) string {
	return ArchiveURL(basePath, b.archive)
}

// KeyDir returns the directory holding the bundles of key.
func (b *Builder) KeyDir(key Key) string {
	return filepath.Join(b.workDir, key.ID())
}

// Build produces a validator for the pair of implementation guides.
func (b *Builder) Build(ctx context.Context, hcxBasePath, nrcesBasePath string) (*engine.Validator, error) {
	key := Key{HCX: hcxBasePath, NRCES: nrcesBasePath}
	log := b.log.With(zap.String("hcx", key.HCX), zap.String("nrces", key.NRCES))
	log.Info("building validator", zap.String("dir", b.KeyDir(key)))

	archives, err := b.FetchBundles(ctx, key)
	if err != nil {
		return nil, err
	}
	dirs, err := b.ExtractBundles(key, archives)
	if err != nil {
		return nil, err
	}
	bundles, err := b.LoadBundles(key, dirs)
	if err != nil {
		return nil, err
	}
	chain, err := b.AssembleChain(bundles.NRCES, bundles.HCX)
	if err != nil {
		return nil, setupError(StageAssemble, key, err)
	}

	opts := append([]hcx.Option{
		hcx.WithDefaultProfile("InsurancePlan", hcxBasePath+InsurancePlanProfile),
	}, b.engineOpts...)
	v, err := engine.New(chain, opts...)
	if err != nil {
		return nil, setupError(StageEngine, key, err)
	}

	log.Info("validator ready",
		zap.Int("hcxDefinitions", bundles.HCX.Len()),
		zap.Int("nrcesDefinitions", bundles.NRCES.Len()))
	return v, nil
}

// FetchBundles downloads both archives of key concurrently.
func (b *Builder) FetchBundles(ctx context.Context, key Key) (Archives, error) {
	dir := b.KeyDir(key)
	archives := Archives{
		HCX:   filepath.Join(dir, HCXArchive),
		NRCES: filepath.Join(dir, NRCESArchive),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := b.fetcher.Fetch(gctx, b.ArchiveURL(key.HCX), archives.HCX)
		return err
	})
	g.Go(func() error {
		_, err := b.fetcher.Fetch(gctx, b.ArchiveURL(key.NRCES), archives.NRCES)
		return err
	})
	if err := g.Wait(); err != nil {
		return Archives{}, setupError(StageFetch, key, err)
	}
	return archives, nil
}

// ExtractBundles extracts both archives next to them.
func (b *Builder) ExtractBundles(key Key, archives Archives) (Dirs, error) {
	dir := b.KeyDir(key)
	dirs := Dirs{
		HCX:   filepath.Join(dir, HCXDir),
		NRCES: filepath.Join(dir, NRCESDir),
	}

	for _, job := range []struct{ archive, target string }{
		{archives.HCX, dirs.HCX},
		{archives.NRCES, dirs.NRCES},
	} {
		n, err := b.extractor.Extract(job.archive, job.target)
		if err != nil {
			return Dirs{}, setupError(StageExtract, key, err)
		}
		b.log.Debug("archive extracted", zap.String("archive", job.archive), zap.Int("files", n))
	}
	return dirs, nil
}

// LoadBundles loads the definitions of both directories.
func (b *Builder) LoadBundles(key Key, dirs Dirs) (Bundles, error) {
	hcxSet, err := b.loader.Load(definitionsDir(dirs.HCX))
	if err != nil {
		return Bundles{}, setupError(StageLoad, key, err)
	}
	nrcesSet, err := b.loader.Load(definitionsDir(dirs.NRCES))
	if err != nil {
		return Bundles{}, setupError(StageLoad, key, err)
	}
	return Bundles{HCX: hcxSet, NRCES: nrcesSet}, nil
}

// definitionsDir descends into the "package" directory of npm-style IG
// packages.
func definitionsDir(dir string) string {
	pkg := filepath.Join(dir, "package")
	if info, err := os.Stat(pkg); err == nil && info.IsDir() {
		return pkg
	}
	return dir
}

// AssembleChain builds the cached support chain. Sets are loaded in order,
// so a later definition replaces an earlier one with the same URL.
func (b *Builder) AssembleChain(sets ...*profile.Set) (*support.CachingSupport, error) {
	if err := b.base.Load(); err != nil {
		return nil, fmt.Errorf("load base definitions: %w", err)
	}

	custom := support.NewPrePopulated("custom-profiles")
	for _, set := range sets {
		if set == nil {
			continue
		}
		if err := set.AddTo(custom); err != nil {
			return nil, fmt.Errorf("load %s: %w", set.Dir, err)
		}
	}

	chain := support.NewChain(
		b.base,
		support.NewCommonCodeSystems(),
		support.NewInMemoryTerminology(),
		custom,
	)
	return support.NewCachingSupport(chain, b.cacheSize), nil
}
