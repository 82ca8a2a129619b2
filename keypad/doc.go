// Package keypad maps button labels and keyboard aliases onto engine
// operations.
//
// A shell resolves whatever the user pressed with Lookup or Dispatch, lays
// out buttons with Layout, and sizes the display text with DisplaySize.
// Run executes a whitespace-separated key script, which is how the batch
// mode and most tests drive an engine.
package keypad
