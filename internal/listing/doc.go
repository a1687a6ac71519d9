// Package listing defines the listing types that flow through the detection
// pipeline and the key normalization used to deduplicate them.
//
// A Candidate is whatever the vision model reported for one listing block in a
// capture. Its free-text identifier is reduced to a stable key by NormalizeKey;
// a Candidate whose key is not yet in history is promoted to a Finding, which is
// the unit that gets recorded and notified.
package listing
