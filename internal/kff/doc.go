// Package kff loads known-file-filter hash lists.
//
// A list is a CSV file with a header naming the hash_type, hash and status
// columns. Each row assigns a status code to one hash; alert tagging looks
// up the hashes carried by evidence records and flags the ones whose status
// is configured as an alert.
package kff
