// Package fragment splits files into fixed-size byte ranges for
// offline/USB distribution and reassembles them from a checksummed
// manifest.
//
// Fragments are named <stem>.partNNN with a zero-padded index and are
// individually transportable; their order is recovered purely from the
// manifest index, never from filesystem listing order. Checksums are
// MD5 and detect corruption only; they are not tamper-resistant.
package fragment
