// Package registry provides a generic thread-safe key/value registry.
//
// phlex uses it for the global algorithm-factory table the CLI driver
// assembles graphs from; it is exported because plugins and embedding
// applications need the same primitive.
package registry
