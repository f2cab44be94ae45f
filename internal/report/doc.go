// Package report streams structured extraction reports.
//
// A report is one XML document holding a list of tagged files and a tree of
// decoded data models (chats, calls, contacts, cookies and so on). Parse
// walks it once and pushes each file and each top-level model to a Handler,
// so memory use is bounded by the largest single model rather than by the
// report.
package report
