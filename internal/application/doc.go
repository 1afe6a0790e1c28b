// Package application provides application initialization and dependency wiring.
// It builds the flag resolver, the bootstrap page the flags are handed to, the
// API router and the HTTP server, keeping the main package focused on CLI
// parsing and orchestration.
package application
