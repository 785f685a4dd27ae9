// Package api defines the public data model of the build engine: session
// state and its operation types, the workflow graph, the configuration
// analysis report, and the HTTP wire types.
package api
