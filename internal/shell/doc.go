// Package shell hands resolved flags to the front-end application. A Launcher
// resolves the flags and calls an EntryPoint exactly once; Page is the
// EntryPoint used by the server and renders the bootstrap HTML that mounts the
// compiled bundle and passes it the flags.
package shell
