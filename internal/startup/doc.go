// Package startup handles configuration loading from environment variables,
// directory validation, and the structured startup/shutdown log output.
package startup
