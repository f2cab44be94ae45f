// Package markup parses the inline markup found in chat message bodies into
// a flat sequence of Message Elements and renders those sequences back out
// as plain text, sanitized HTML, or Markdown.
//
// The grammar covers formatting spans (b, i, s), links, emoticons, flags,
// quoted replies and a family of system-event directives (membership
// changes, topic updates, shared files and contacts, call participant lists,
// SMS). Each directive collapses into a single system element carrying a
// readable sentence. Unknown tags are reported once per Parser and skipped
// while their text content is kept.
//
// Consecutive text elements are merged, as are consecutive system elements
// (joined with ". "), so a sequence never holds two adjacent elements of
// either kind.
package markup
