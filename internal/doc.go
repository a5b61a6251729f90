// Package internal holds the pieces of goBlog that are private to this module.
//
// # Sub-packages
//
//   - apitest: in-process stand-in for the blog API, used by tests and examples/devapi
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - cli: the blogportal command tree
//   - config: file, environment and .env loading for the CLI
//   - output: terminal printer, tables and CLI error formatting
//
// # What this package must NOT do
//
//   - Export types that appear in the public goBlog API.
//   - Be imported by any package outside the goBlog module.
package internal
