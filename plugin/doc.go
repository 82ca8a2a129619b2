// Package plugin loads user-defined unary functions from core WebAssembly
// modules.
//
// A plugin is a pair of files in one directory: name.wasm, the module, and
// name.wit, the signatures it exports. Every signature must take one f64 and
// return one f64:
//
//	export sinh: func(x: f64) -> f64;
//	export cosh: func(x: f64) -> f64;
//
// Modules run in a wazero runtime owned by a Host. Compiled modules are cached
// by content hash, so reloading an unchanged file skips compilation.
//
//	host, err := plugin.NewHost(ctx)
//	if err != nil {
//	    return err
//	}
//	defer host.Close(ctx)
//
//	mods, err := host.LoadDir(ctx, "plugins")
//	if err != nil {
//	    return err
//	}
//	if err := plugin.Install(ctx, e, mods...); err != nil {
//	    return err
//	}
//
// A guest trap while evaluating shows "Error" on the display. Watcher reports
// changes to the plugin directory so a shell can call LoadDir and Install
// again.
//
// # Thread Safety
//
// Host is safe for concurrent use. The functions returned by Module.Funcs share
// the module instance and follow the engine's single-threaded model.
package plugin
