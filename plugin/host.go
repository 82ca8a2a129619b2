package plugin

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/calc/engine"
	"github.com/wippyai/calc/errors"
)

// Host owns the wazero runtime that plugin modules run in.
type Host struct {
	runtime          wazero.Runtime
	fs               afero.Fs
	logger           *zap.Logger
	compiled         map[uint64]*compiledEntry
	modules          map[string]*Module
	mu               sync.Mutex
	seq              uint64
	memoryLimitPages uint32
}

type compiledEntry struct {
	module wazero.CompiledModule
	refs   int
}

// Module is an instantiated plugin.
type Module struct {
	host    *Host
	inst    api.Module
	fns     map[string]api.Function
	name    string
	dir     string
	names   []string
	hash    uint64
	closeMu sync.Mutex
	closed  bool
}

// NewHost creates a host with its own wazero runtime.
func NewHost(ctx context.Context, opts ...Option) (*Host, error) {
	h := &Host{
		fs:       afero.NewOsFs(),
		compiled: make(map[uint64]*compiledEntry),
		modules:  make(map[string]*Module),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = Logger()
	}

	cfg := wazero.NewRuntimeConfig()
	if h.memoryLimitPages > 0 {
		cfg = cfg.WithMemoryLimitPages(h.memoryLimitPages)
	}
	h.runtime = wazero.NewRuntimeWithConfig(ctx, cfg)
	return h, nil
}

// Close releases the runtime and every module loaded through it.
func (h *Host) Close(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, m := range h.modules {
		m.markClosed()
	}
	clear(h.modules)
	clear(h.compiled)
	return h.runtime.Close(ctx)
}

// Load compiles and instantiates a plugin. witText lists the exported
// functions; each must be func(f64) -> f64 there and in the module itself.
// Loading a name that is already loaded replaces the old module once the new
// one is instantiated. On failure the old module stays loaded.
func (h *Host) Load(ctx context.Context, name string, wasm []byte, witText string) (*Module, error) {
	mods, err := h.loadAll(ctx, []source{{name: name, wasm: wasm, wit: witText}}, "", false)
	if err != nil {
		return nil, err
	}
	return mods[0], nil
}

// source is the raw content of one plugin.
type source struct {
	name string
	dir  string
	wasm []byte
	wit  string
}

// staged is a compiled plugin whose exports have been checked.
type staged struct {
	src     source
	names   []string
	exports map[string]string
	hash    uint64
	entry   *compiledEntry
}

// loadAll loads srcs as one unit: either every plugin is staged and
// instantiated and then swapped in, or nothing loaded before changes.
// With prune set, plugins loaded from dir that are not in srcs are unloaded
// after the swap.
func (h *Host) loadAll(ctx context.Context, srcs []source, dir string, prune bool) ([]*Module, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	batch := make([]*staged, 0, len(srcs))
	var mods []*Module
	abort := func(err error) ([]*Module, error) {
		for _, m := range mods {
			m.close(ctx)
		}
		for _, s := range batch {
			h.release(ctx, s.hash)
		}
		return nil, err
	}

	for _, src := range srcs {
		s, err := h.stage(ctx, src)
		if err != nil {
			return abort(err)
		}
		batch = append(batch, s)
	}

	sets := make([]exportSet, len(batch))
	for i, s := range batch {
		sets[i] = exportSet{module: s.src.name, names: s.names}
	}
	if err := checkConflicts(sets); err != nil {
		return abort(err)
	}

	for _, s := range batch {
		m, err := h.instantiate(ctx, s)
		if err != nil {
			return abort(err)
		}
		mods = append(mods, m)
	}

	incoming := make(map[string]bool, len(mods))
	for _, m := range mods {
		if old, ok := h.modules[m.name]; ok {
			h.unload(ctx, old)
		}
		h.modules[m.name] = m
		incoming[m.name] = true
		h.logger.Debug("plugin loaded",
			zap.String("plugin", m.name),
			zap.Strings("funcs", m.names),
			zap.Uint64("hash", m.hash))
	}
	if prune {
		for name, m := range h.modules {
			if m.dir == dir && !incoming[name] {
				h.logger.Debug("plugin removed", zap.String("plugin", name))
				h.unload(ctx, m)
			}
		}
	}
	return mods, nil
}

// stage parses the signatures of src, compiles it and checks its exports.
// On success the caller owns one compile cache reference. h.mu must be held.
func (h *Host) stage(ctx context.Context, src source) (*staged, error) {
	if src.name == "" {
		return nil, errors.InvalidInput(errors.PhasePlugin, "plugin needs a name")
	}
	names, err := parseSignatures(src.name, src.wit)
	if err != nil {
		return nil, err
	}

	hash := xxhash.Sum64(src.wasm)
	entry, err := h.compile(ctx, hash, src.wasm)
	if err != nil {
		return nil, err
	}

	defs := entry.module.ExportedFunctions()
	exports := make(map[string]string, len(names))
	for _, fname := range names {
		export, def, ok := findExport(defs, fname)
		if !ok {
			h.release(ctx, hash)
			return nil, errors.NotFound(errors.PhasePlugin, "export", fname)
		}
		if !isUnaryF64(def) {
			h.release(ctx, hash)
			return nil, errors.InvalidSignature([]string{src.name, fname}, "module export is not (f64) -> f64")
		}
		exports[fname] = export
	}
	return &staged{src: src, names: names, exports: exports, hash: hash, entry: entry}, nil
}

// instantiate starts a staged plugin. Instances get a unique runtime name so
// a replacement can run alongside the module it replaces. h.mu must be held.
func (h *Host) instantiate(ctx context.Context, s *staged) (*Module, error) {
	h.seq++
	cfg := wazero.NewModuleConfig().WithName(fmt.Sprintf("%s#%d", s.src.name, h.seq))
	inst, err := h.runtime.InstantiateModule(ctx, s.entry.module, cfg)
	if err != nil {
		return nil, errors.Instantiation(s.src.name, err)
	}

	m := &Module{
		host:  h,
		inst:  inst,
		fns:   make(map[string]api.Function, len(s.names)),
		name:  s.src.name,
		dir:   s.src.dir,
		names: s.names,
		hash:  s.hash,
	}
	for fname, export := range s.exports {
		m.fns[fname] = inst.ExportedFunction(export)
	}
	return m, nil
}

// compile returns the cached compiled module for hash, compiling wasm on a
// miss. The caller owns one reference. h.mu must be held.
func (h *Host) compile(ctx context.Context, hash uint64, wasm []byte) (*compiledEntry, error) {
	if entry, ok := h.compiled[hash]; ok {
		entry.refs++
		return entry, nil
	}
	compiled, err := h.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.Load("compile module", err)
	}
	entry := &compiledEntry{module: compiled, refs: 1}
	h.compiled[hash] = entry
	return entry, nil
}

// release drops one reference to a compiled module. h.mu must be held.
func (h *Host) release(ctx context.Context, hash uint64) {
	entry, ok := h.compiled[hash]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs > 0 {
		return
	}
	delete(h.compiled, hash)
	if err := entry.module.Close(ctx); err != nil {
		h.logger.Warn("close compiled module", zap.Error(err))
	}
}

// unload closes m and forgets it. h.mu must be held.
func (h *Host) unload(ctx context.Context, m *Module) {
	delete(h.modules, m.name)
	m.close(ctx)
	h.release(ctx, m.hash)
}

// Unload closes the named plugin.
func (h *Host) Unload(ctx context.Context, name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.modules[name]
	if !ok {
		return errors.NotFound(errors.PhasePlugin, "plugin", name)
	}
	h.unload(ctx, m)
	return nil
}

// Modules returns the loaded plugins sorted by name.
func (h *Host) Modules() []*Module {
	h.mu.Lock()
	defer h.mu.Unlock()
	mods := make([]*Module, 0, len(h.modules))
	for _, m := range h.modules {
		mods = append(mods, m)
	}
	sort.Slice(mods, func(i, j int) bool { return mods[i].name < mods[j].name })
	return mods
}

// findExport matches a WIT name against the module exports, accepting the
// snake_case form of a kebab-case name.
func findExport(defs map[string]api.FunctionDefinition, name string) (string, api.FunctionDefinition, bool) {
	if def, ok := defs[name]; ok {
		return name, def, true
	}
	snake := strings.ReplaceAll(name, "-", "_")
	if def, ok := defs[snake]; ok {
		return snake, def, true
	}
	return "", nil, false
}

func isUnaryF64(def api.FunctionDefinition) bool {
	params, results := def.ParamTypes(), def.ResultTypes()
	return len(params) == 1 && params[0] == api.ValueTypeF64 &&
		len(results) == 1 && results[0] == api.ValueTypeF64
}

// Name returns the plugin name.
func (m *Module) Name() string {
	return m.name
}

// Names returns the function names in declaration order.
func (m *Module) Names() []string {
	return append([]string(nil), m.names...)
}

// Call invokes one plugin function.
func (m *Module) Call(ctx context.Context, name string, x float64) (float64, error) {
	fn, ok := m.fns[name]
	if !ok {
		return 0, errors.NotFound(errors.PhasePlugin, "function", name)
	}
	if m.isClosed() {
		return 0, errors.New(errors.PhasePlugin, errors.KindNotFound).
			Path(m.name, name).
			Detail("plugin unloaded").
			Build()
	}
	out, err := fn.Call(ctx, api.EncodeF64(x))
	if err != nil {
		return 0, errors.New(errors.PhaseEvaluate, errors.KindInvalidInput).
			Path(m.name, name).
			Value(x).
			Cause(err).
			Build()
	}
	return api.DecodeF64(out[0]), nil
}

// Funcs adapts every plugin function into an engine function. A failed call
// yields NaN, which the engine shows as "Error".
func (m *Module) Funcs(ctx context.Context) map[string]engine.Func {
	funcs := make(map[string]engine.Func, len(m.names))
	for _, name := range m.names {
		funcs[name] = func(x float64) (float64, bool) {
			r, err := m.Call(ctx, name, x)
			if err != nil {
				m.host.logger.Warn("plugin call failed",
					zap.String("plugin", m.name),
					zap.String("func", name),
					zap.Error(err))
				return math.NaN(), true
			}
			return r, true
		}
	}
	return funcs
}

// close stops the instance without touching the compile cache.
func (m *Module) close(ctx context.Context) {
	m.markClosed()
	if err := m.inst.Close(ctx); err != nil {
		m.host.logger.Warn("close plugin", zap.String("plugin", m.name), zap.Error(err))
	}
}

func (m *Module) markClosed() {
	m.closeMu.Lock()
	m.closed = true
	m.closeMu.Unlock()
}

func (m *Module) isClosed() bool {
	m.closeMu.Lock()
	defer m.closeMu.Unlock()
	return m.closed
}

// Install replaces the engine's extension functions with the functions of
// mods. Two plugins exporting the same name is an error, and so is a plugin
// function named like a built-in. On error the engine is left unchanged.
func Install(ctx context.Context, e *engine.Engine, mods ...*Module) error {
	sets := make([]exportSet, len(mods))
	for i, m := range mods {
		sets[i] = exportSet{module: m.name, names: m.names}
	}
	if err := checkConflicts(sets); err != nil {
		return err
	}

	e.ResetExtensions()
	for _, m := range mods {
		for name, fn := range m.Funcs(ctx) {
			if err := e.Register(name, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

type exportSet struct {
	module string
	names  []string
}

func checkConflicts(sets []exportSet) error {
	owner := make(map[string]string)
	for _, set := range sets {
		for _, name := range set.names {
			if prev, ok := owner[name]; ok {
				return errors.New(errors.PhasePlugin, errors.KindDuplicate).
					Path(prev, set.module).
					Name(name).
					Detail("function exported by two plugins").
					Build()
			}
			if engine.IsBuiltin(name) {
				return errors.Duplicate(errors.PhasePlugin, "built-in function", name)
			}
			owner[name] = set.module
		}
	}
	return nil
}
