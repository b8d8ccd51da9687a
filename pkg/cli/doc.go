// Package cli contains helpers shared by the trawl commands: signal
// handling, user-facing wait notices, and run report rendering.
package cli
