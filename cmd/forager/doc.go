// Package main hosts the forager CLI entrypoint and command graph.
//
// Commands register case items with their datasource, run extraction against
// them, and inspect the resulting evidence. Every command works directly on
// the case database named by the configuration; there is no daemon.
package main
