// Package chromium reads the Cookies and History databases of
// Chromium-based browsers.
package chromium
