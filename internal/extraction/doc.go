// Package extraction runs the extraction pipeline of one case item.
//
// A run moves through Idle, Loading, PostProcessing and Done. Loading
// dispatches the ant family matching the item's datasource kind; a failing
// ant aborts the run, purges the item's evidence and marks the run failed.
// Post-processing always follows a successful load, and a failing
// post-processor is logged and counted as a warning while the rest still
// run. Runs of the same item are serialized by a lock file, so two
// processes can never interleave writes to one item.
package extraction
