// Package shaderlib compiles and caches shader modules keyed by
// (path, macro set). The embedded-WGSL-constants idiom follows
// shaders/shaders.go; the concurrent-compile worker pool follows the
// job/result channel pattern in particles_ecs.go's emitter simulation,
// generalized from a fixed per-frame job batch to an on-demand request
// queue that a Pass Scheduler can poll with HasPendingRequests.
package shaderlib

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gekko3d/clusterforge/logging"
	"github.com/gekko3d/clusterforge/rhi"
)

// Backend compiles WGSL source into a backend shader module; concrete
// backends (wgpurhi) implement this against their real compiler, fakerhi
// call sites can use a trivial stub for tests.
type Backend interface {
	CompileShader(source string, label string) (rhi.ShaderModule, error)
}

type cacheKey struct {
	path   string
	macros string
}

// Module is a cached, compiled shader keyed by (path, macro set).
type Module struct {
	rhi.ShaderModule
	path   string
	macros []string
}

func (m *Module) Path() string     { return m.path }
func (m *Module) Macros() []string { return m.macros }

// Library is the shader module cache. It owns a small worker pool that
// compiles shaders off the main thread; Get blocks the caller until its
// own request completes but does not block other in-flight requests.
type Library struct {
	backend Backend
	log     logging.Logger
	sources map[string]string // path -> WGSL source, populated by RegisterSource

	mu    sync.Mutex
	cache map[cacheKey]*Module

	jobs    chan compileJob
	pending atomic.Int64
	once    sync.Once
}

type compileJob struct {
	key    cacheKey
	result chan compileResult
}

type compileResult struct {
	mod *Module
	err error
}

const workerCount = 4

// New constructs a Library with a fixed 4-worker compile pool, matching
// the capped worker count used by the engine's other CPU work-stealing
// pool (particles_ecs.go caps at 8; shader compiles are comparatively
// rare, so 4 is plenty).
func New(backend Backend, log logging.Logger) *Library {
	if log == nil {
		log = logging.NewNopLogger()
	}
	l := &Library{
		backend: backend,
		log:     log,
		sources: make(map[string]string),
		cache:   make(map[cacheKey]*Module),
		jobs:    make(chan compileJob, 64),
	}
	for i := 0; i < workerCount; i++ {
		go l.worker()
	}
	return l
}

func (l *Library) worker() {
	for job := range l.jobs {
		src, ok := l.sources[job.key.path]
		if !ok {
			job.result <- compileResult{err: errNotFound(job.key.path)}
			l.pending.Add(-1)
			continue
		}
		expanded := expandMacros(src, job.key.macros)
		sm, err := l.backend.CompileShader(expanded, job.key.path+"#"+job.key.macros)
		if err != nil {
			job.result <- compileResult{err: err}
			l.pending.Add(-1)
			continue
		}
		mod := &Module{ShaderModule: sm, path: job.key.path, macros: strings.Split(job.key.macros, ",")}
		job.result <- compileResult{mod: mod}
		l.pending.Add(-1)
	}
}

// RegisterSource makes a WGSL source available under path; callers embed
// the actual .wgsl text (see shaderlib/shaders) and register it once at
// startup.
func (l *Library) RegisterSource(path, source string) {
	l.sources[path] = source
}

// Get returns a cached module for (path, macros), compiling it on a
// worker if this is the first request for that combination. macros
// should be passed pre-sorted by the caller so cache keys are stable.
func (l *Library) Get(path string, macros []string) (*Module, error) {
	key := cacheKey{path: path, macros: strings.Join(macros, ",")}

	l.mu.Lock()
	if mod, ok := l.cache[key]; ok {
		l.mu.Unlock()
		return mod, nil
	}
	l.mu.Unlock()

	result := make(chan compileResult, 1)
	l.pending.Add(1)
	l.jobs <- compileJob{key: key, result: result}
	res := <-result
	if res.err != nil {
		return nil, res.err
	}

	l.mu.Lock()
	l.cache[key] = res.mod
	l.mu.Unlock()
	l.log.Debugf("shaderlib: compiled %s [%s]", path, key.macros)
	return res.mod, nil
}

// HasPendingRequests reports whether any Get call is still waiting on a
// worker, used by frame.Renderer.RenderScene to decide whether it's safe
// to proceed with a frame that depends on a shader still compiling.
func (l *Library) HasPendingRequests() bool {
	return l.pending.Load() > 0
}

func expandMacros(source string, macros string) string {
	if macros == "" {
		return source
	}
	var b strings.Builder
	for _, m := range strings.Split(macros, ",") {
		b.WriteString("#define ")
		b.WriteString(m)
		b.WriteString("\n")
	}
	b.WriteString(source)
	return b.String()
}

type errNotFound string

func (e errNotFound) Error() string { return "shaderlib: no source registered for " + string(e) }
