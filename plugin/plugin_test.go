package plugin

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/wippyai/calc/engine"
	"github.com/wippyai/calc/errors"
)

// WASM exporting double (x + x) and half (x * 0.5), both (f64) -> f64
var mathWASM = []byte{
	0x00, 0x61, 0x73, 0x6d, // magic
	0x01, 0x00, 0x00, 0x00, // version
	// Type section: (f64) -> f64
	0x01, 0x06, 0x01, 0x60, 0x01, 0x7c, 0x01, 0x7c,
	// Function section: funcs 0 and 1 use type 0
	0x03, 0x03, 0x02, 0x00, 0x00,
	// Export section: "double" -> func 0, "half" -> func 1
	0x07, 0x11, 0x02,
	0x06, 0x64, 0x6f, 0x75, 0x62, 0x6c, 0x65, 0x00, 0x00,
	0x04, 0x68, 0x61, 0x6c, 0x66, 0x00, 0x01,
	// Code section
	0x0a, 0x18, 0x02,
	// double: local.get 0, local.get 0, f64.add
	0x07, 0x00, 0x20, 0x00, 0x20, 0x00, 0xa0, 0x0b,
	// half: local.get 0, f64.const 0.5, f64.mul
	0x0e, 0x00, 0x20, 0x00, 0x44, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xe0, 0x3f, 0xa2, 0x0b,
}

const mathWIT = `
	package calc:math@0.1.0;

	interface math {
		export double: func(x: f64) -> f64;
		export half: func(x: f64) -> f64;
	}
`

// WASM exporting boom: (f64) -> f64 that traps with unreachable
var trapWASM = []byte{
	0x00, 0x61, 0x73, 0x6d,
	0x01, 0x00, 0x00, 0x00,
	0x01, 0x06, 0x01, 0x60, 0x01, 0x7c, 0x01, 0x7c,
	0x03, 0x02, 0x01, 0x00,
	0x07, 0x08, 0x01, 0x04, 0x62, 0x6f, 0x6f, 0x6d, 0x00, 0x00,
	0x0a, 0x05, 0x01, 0x03, 0x00, 0x00, 0x0b,
}

// WASM exporting double: (f64) -> f64 (identity) whose start function traps,
// so it compiles but cannot be instantiated
var startTrapWASM = []byte{
	0x00, 0x61, 0x73, 0x6d,
	0x01, 0x00, 0x00, 0x00,
	// Type section: (f64) -> f64, () -> ()
	0x01, 0x09, 0x02, 0x60, 0x01, 0x7c, 0x01, 0x7c, 0x60, 0x00, 0x00,
	// Function section: func 0 type 0, func 1 type 1
	0x03, 0x03, 0x02, 0x00, 0x01,
	// Export section: "double" -> func 0
	0x07, 0x0a, 0x01, 0x06, 0x64, 0x6f, 0x75, 0x62, 0x6c, 0x65, 0x00, 0x00,
	// Start section: func 1
	0x08, 0x01, 0x01,
	// Code section: local.get 0; unreachable
	0x0a, 0x0a, 0x02,
	0x04, 0x00, 0x20, 0x00, 0x0b,
	0x03, 0x00, 0x00, 0x0b,
}

// WASM with add: (i32, i32) -> i32
var addWASM = []byte{
	0x00, 0x61, 0x73, 0x6d,
	0x01, 0x00, 0x00, 0x00,
	0x01, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f,
	0x03, 0x02, 0x01, 0x00,
	0x07, 0x07, 0x01, 0x03, 0x61, 0x64, 0x64, 0x00, 0x00,
	0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b,
}

func newHost(t *testing.T, opts ...Option) *Host {
	t.Helper()
	ctx := context.Background()
	h, err := NewHost(ctx, opts...)
	if err != nil {
		t.Fatalf("NewHost: %v", err)
	}
	t.Cleanup(func() { h.Close(ctx) })
	return h
}

func isKind(err error, phase errors.Phase, kind errors.Kind) bool {
	return stderrors.Is(err, &errors.Error{Phase: phase, Kind: kind})
}

func TestParseSignatures(t *testing.T) {
	names, err := parseSignatures("math", mathWIT)
	if err != nil {
		t.Fatalf("parseSignatures: %v", err)
	}
	if len(names) != 2 || names[0] != "double" || names[1] != "half" {
		t.Errorf("names = %v", names)
	}

	tests := []struct {
		name string
		wit  string
		kind errors.Kind
	}{
		{"empty", "", errors.KindInvalidInput},
		{"two params", "export f: func(a: f64, b: f64) -> f64;", errors.KindInvalidSignature},
		{"no params", "export f: func() -> f64;", errors.KindInvalidSignature},
		{"integer param", "export f: func(a: s32) -> f64;", errors.KindInvalidSignature},
		{"no result", "export f: func(a: f64);", errors.KindInvalidSignature},
		{"f32 result", "export f: func(a: f64) -> f32;", errors.KindInvalidSignature},
		{"duplicate", "export f: func(a: f64) -> f64;\nexport f: func(a: f64) -> f64;", errors.KindDuplicate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseSignatures("p", tt.wit)
			if !isKind(err, errors.PhasePlugin, tt.kind) {
				t.Errorf("err = %v, want %s", err, tt.kind)
			}
		})
	}
}

func TestParseSignatures_ParenthesizedResult(t *testing.T) {
	names, err := parseSignatures("p", "g: func(x: f64) -> (f64);")
	if err != nil || len(names) != 1 || names[0] != "g" {
		t.Errorf("names=%v err=%v", names, err)
	}
}

func TestHost_LoadAndCall(t *testing.T) {
	ctx := context.Background()
	h := newHost(t)

	m, err := h.Load(ctx, "math", mathWASM, mathWIT)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Name() != "math" {
		t.Errorf("Name = %q", m.Name())
	}

	tests := []struct {
		fn   string
		in   float64
		want float64
	}{
		{"double", 21, 42},
		{"double", -1.5, -3},
		{"half", 5, 2.5},
	}
	for _, tt := range tests {
		got, err := m.Call(ctx, tt.fn, tt.in)
		if err != nil {
			t.Fatalf("Call %s: %v", tt.fn, err)
		}
		if got != tt.want {
			t.Errorf("%s(%v) = %v, want %v", tt.fn, tt.in, got, tt.want)
		}
	}

	if _, err := m.Call(ctx, "triple", 1); !isKind(err, errors.PhasePlugin, errors.KindNotFound) {
		t.Errorf("unknown function: err = %v", err)
	}
}

func TestHost_LoadErrors(t *testing.T) {
	ctx := context.Background()
	h := newHost(t)

	tests := []struct {
		name  string
		wasm  []byte
		wit   string
		phase errors.Phase
		kind  errors.Kind
	}{
		{"not wasm", []byte("not wasm"), mathWIT, errors.PhasePlugin, errors.KindLoad},
		{"missing export", mathWASM, "export triple: func(x: f64) -> f64;", errors.PhasePlugin, errors.KindNotFound},
		{"integer export", addWASM, "export add: func(x: f64) -> f64;", errors.PhasePlugin, errors.KindInvalidSignature},
		{"bad wit", mathWASM, "nothing here", errors.PhasePlugin, errors.KindInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Load(ctx, "p", tt.wasm, tt.wit)
			if !isKind(err, tt.phase, tt.kind) {
				t.Errorf("err = %v, want %s/%s", err, tt.phase, tt.kind)
			}
		})
	}

	if len(h.Modules()) != 0 {
		t.Errorf("failed loads left modules behind: %d", len(h.Modules()))
	}
	if len(h.compiled) != 0 {
		t.Errorf("failed loads left %d compiled modules", len(h.compiled))
	}

	if _, err := h.Load(ctx, "", mathWASM, mathWIT); err == nil {
		t.Error("expected error for empty name")
	}
}

func TestHost_ReloadReplaces(t *testing.T) {
	ctx := context.Background()
	h := newHost(t)

	first, err := h.Load(ctx, "math", mathWASM, mathWIT)
	if err != nil {
		t.Fatal(err)
	}
	second, err := h.Load(ctx, "math", mathWASM, mathWIT)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	if mods := h.Modules(); len(mods) != 1 || mods[0] != second {
		t.Fatalf("Modules = %v", mods)
	}
	if _, err := first.Call(ctx, "double", 1); err == nil {
		t.Error("replaced module should refuse calls")
	}
	if got, err := second.Call(ctx, "double", 2); err != nil || got != 4 {
		t.Errorf("double(2) = %v, %v", got, err)
	}
}

func TestHost_FailedReloadKeepsModule(t *testing.T) {
	ctx := context.Background()
	h := newHost(t)

	first, err := h.Load(ctx, "math", mathWASM, mathWIT)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		wasm []byte
		wit  string
		kind errors.Kind
	}{
		{"instantiation fails", startTrapWASM, "export double: func(x: f64) -> f64;", errors.KindInstantiation},
		{"compile fails", []byte("not wasm"), mathWIT, errors.KindLoad},
		{"bad signature", addWASM, "export add: func(x: f64) -> f64;", errors.KindInvalidSignature},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := h.Load(ctx, "math", tt.wasm, tt.wit); !isKind(err, errors.PhasePlugin, tt.kind) {
				t.Fatalf("err = %v, want %s", err, tt.kind)
			}
			if mods := h.Modules(); len(mods) != 1 || mods[0] != first {
				t.Fatalf("Modules = %v, want the original module", mods)
			}
			if got, err := first.Call(ctx, "double", 2); err != nil || got != 4 {
				t.Errorf("double(2) = %v, %v", got, err)
			}
			if len(h.compiled) != 1 {
				t.Errorf("compiled = %d, want 1", len(h.compiled))
			}
		})
	}
}

func TestHost_CompileCache(t *testing.T) {
	ctx := context.Background()
	h := newHost(t)

	if _, err := h.Load(ctx, "a", mathWASM, mathWIT); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Load(ctx, "b", mathWASM, mathWIT); err != nil {
		t.Fatal(err)
	}
	if len(h.compiled) != 1 {
		t.Fatalf("compiled = %d, want 1 shared entry", len(h.compiled))
	}
	for _, entry := range h.compiled {
		if entry.refs != 2 {
			t.Errorf("refs = %d, want 2", entry.refs)
		}
	}

	if err := h.Unload(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if len(h.compiled) != 1 {
		t.Errorf("entry dropped while still referenced")
	}
	if err := h.Unload(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	if len(h.compiled) != 0 {
		t.Errorf("compiled = %d after unloading everything", len(h.compiled))
	}
	if err := h.Unload(ctx, "b"); !isKind(err, errors.PhasePlugin, errors.KindNotFound) {
		t.Errorf("second unload: err = %v", err)
	}
}

func TestInstall(t *testing.T) {
	ctx := context.Background()
	h := newHost(t)

	m, err := h.Load(ctx, "math", mathWASM, mathWIT)
	if err != nil {
		t.Fatal(err)
	}
	e, err := engine.New(engine.WithFunc("stale", engine.Total(func(x float64) float64 { return x })))
	if err != nil {
		t.Fatal(err)
	}
	if err := Install(ctx, e, m); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if e.HasFunc("stale") {
		t.Error("Install should replace earlier extensions")
	}

	for _, d := range "21" {
		if err := e.PressDigitOrPoint(string(d)); err != nil {
			t.Fatal(err)
		}
	}
	if err := e.PressUnary("double"); err != nil {
		t.Fatal(err)
	}
	if e.Display() != "42" {
		t.Errorf("double(21) = %q", e.Display())
	}
	if err := e.PressUnary("half"); err != nil {
		t.Fatal(err)
	}
	if e.Display() != "21" {
		t.Errorf("half(42) = %q", e.Display())
	}
}

func TestInstall_DuplicateAcrossPlugins(t *testing.T) {
	ctx := context.Background()
	h := newHost(t)

	a, err := h.Load(ctx, "a", mathWASM, mathWIT)
	if err != nil {
		t.Fatal(err)
	}
	b, err := h.Load(ctx, "b", mathWASM, mathWIT)
	if err != nil {
		t.Fatal(err)
	}
	e, err := engine.New()
	if err != nil {
		t.Fatal(err)
	}
	if err := Install(ctx, e, a, b); !isKind(err, errors.PhasePlugin, errors.KindDuplicate) {
		t.Errorf("err = %v, want duplicate", err)
	}
}

func TestTrapShowsError(t *testing.T) {
	ctx := context.Background()
	h := newHost(t)

	m, err := h.Load(ctx, "trap", trapWASM, "export boom: func(x: f64) -> f64;")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := m.Call(ctx, "boom", 1); !isKind(err, errors.PhaseEvaluate, errors.KindInvalidInput) {
		t.Errorf("Call err = %v", err)
	}

	e, err := engine.New()
	if err != nil {
		t.Fatal(err)
	}
	if err := Install(ctx, e, m); err != nil {
		t.Fatal(err)
	}
	if err := e.PressDigitOrPoint("3"); err != nil {
		t.Fatal(err)
	}
	if err := e.PressUnary("boom"); err != nil {
		t.Fatal(err)
	}
	if e.Display() != engine.ErrorDisplay {
		t.Errorf("display = %q, want Error", e.Display())
	}
}

func TestLoadDir(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	h := newHost(t, WithFs(fs))

	files := map[string][]byte{
		"/plugins/math.wasm":  mathWASM,
		"/plugins/math.wit":   []byte(mathWIT),
		"/plugins/README.txt": []byte("not a plugin"),
	}
	for path, data := range files {
		if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	mods, err := h.LoadDir(ctx, "/plugins")
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(mods) != 1 || mods[0].Name() != "math" {
		t.Fatalf("mods = %v", mods)
	}
	if names := mods[0].Names(); len(names) != 2 {
		t.Errorf("Names = %v", names)
	}

	if err := fs.Remove("/plugins/math.wasm"); err != nil {
		t.Fatal(err)
	}
	mods, err = h.LoadDir(ctx, "/plugins")
	if err != nil {
		t.Fatalf("LoadDir after removal: %v", err)
	}
	if len(mods) != 0 || len(h.Modules()) != 0 {
		t.Errorf("removed plugin still loaded: %v", h.Modules())
	}
}

func TestLoadDir_FailedReloadKeepsPlugins(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	h := newHost(t, WithFs(fs))

	write := func(path string, data []byte) {
		t.Helper()
		if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("/p/amath.wasm", mathWASM)
	write("/p/amath.wit", []byte(mathWIT))

	mods, err := h.LoadDir(ctx, "/p")
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	e, err := engine.New()
	if err != nil {
		t.Fatal(err)
	}
	if err := Install(ctx, e, mods...); err != nil {
		t.Fatal(err)
	}

	double4 := func() string {
		t.Helper()
		e.PressClear()
		if err := e.PressDigitOrPoint("4"); err != nil {
			t.Fatal(err)
		}
		if err := e.PressUnary("double"); err != nil {
			t.Fatal(err)
		}
		return e.Display()
	}
	if got := double4(); got != "8" {
		t.Fatalf("double(4) = %q, want 8", got)
	}

	tests := []struct {
		name  string
		setup func()
		kind  errors.Kind
	}{
		{
			name:  "module written before its signatures",
			setup: func() { write("/p/zbad.wasm", mathWASM) },
			kind:  errors.KindNotFound,
		},
		{
			name: "module does not compile",
			setup: func() {
				write("/p/zbad.wasm", []byte("garbage"))
				write("/p/zbad.wit", []byte("export triple: func(x: f64) -> f64;"))
			},
			kind: errors.KindLoad,
		},
		{
			name: "two plugins export the same name",
			setup: func() {
				write("/p/zdup.wasm", mathWASM)
				write("/p/zdup.wit", []byte(mathWIT))
			},
			kind: errors.KindDuplicate,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, name := range []string{"zbad", "zdup"} {
				fs.Remove("/p/" + name + ".wasm")
				fs.Remove("/p/" + name + ".wit")
			}
			tt.setup()

			if _, err := h.LoadDir(ctx, "/p"); !isKind(err, errors.PhasePlugin, tt.kind) {
				t.Fatalf("err = %v, want %s", err, tt.kind)
			}
			if got := h.Modules(); len(got) != 1 || got[0] != mods[0] {
				t.Fatalf("Modules = %v, want the original module", got)
			}
			if got := double4(); got != "8" {
				t.Errorf("double(4) after failed reload = %q, want 8", got)
			}
		})
	}
}

func TestLoadDir_InstantiationFailureKeepsPlugins(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	h := newHost(t, WithFs(fs))

	if err := afero.WriteFile(fs, "/p/math.wasm", mathWASM, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, "/p/math.wit", []byte(mathWIT), 0o644); err != nil {
		t.Fatal(err)
	}
	mods, err := h.LoadDir(ctx, "/p")
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}

	// Replace math with a module that traps on start.
	if err := afero.WriteFile(fs, "/p/math.wasm", startTrapWASM, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, "/p/math.wit", []byte("export double: func(x: f64) -> f64;"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := h.LoadDir(ctx, "/p"); !isKind(err, errors.PhasePlugin, errors.KindInstantiation) {
		t.Fatalf("err = %v, want instantiation", err)
	}
	if got := h.Modules(); len(got) != 1 || got[0] != mods[0] {
		t.Fatalf("Modules = %v, want the original module", got)
	}
	if got, err := mods[0].Call(ctx, "half", 3); err != nil || got != 1.5 {
		t.Errorf("half(3) = %v, %v", got, err)
	}
}

func TestLoadDir_MissingSignatures(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	h := newHost(t, WithFs(fs))

	if err := afero.WriteFile(fs, "/plugins/math.wasm", mathWASM, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := h.LoadDir(ctx, "/plugins"); !isKind(err, errors.PhasePlugin, errors.KindNotFound) {
		t.Errorf("err = %v, want not_found", err)
	}
	if _, err := h.LoadDir(ctx, "/missing"); !isKind(err, errors.PhasePlugin, errors.KindLoad) {
		t.Errorf("missing dir: err = %v, want load", err)
	}
}

func TestIsPluginFile(t *testing.T) {
	for path, want := range map[string]bool{
		"a.wasm":      true,
		"dir/b.wit":   true,
		"c.wat":       false,
		"README.md":   false,
		"wasm":        false,
		"x.wasm.swp":  false,
		"/tmp/y.wasm": true,
	} {
		if got := IsPluginFile(path); got != want {
			t.Errorf("IsPluginFile(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	w, err := Watch(dir, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(filepath.Join(dir, "math.wasm"), mathWASM, 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-w.Changes():
	case err := <-w.Errors():
		t.Fatalf("watch error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	if err := w.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestWatch_MissingDir(t *testing.T) {
	if _, err := Watch(filepath.Join(t.TempDir(), "nope"), 0); err == nil {
		t.Error("expected error for missing directory")
	}
}
