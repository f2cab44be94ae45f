// Package datasource resolves the datasource recorded on a case item into
// something loaders can read: a report file, or a volume exposed as a
// directory tree that ants search for artifact files.
package datasource
