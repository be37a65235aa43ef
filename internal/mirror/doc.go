// Package mirror implements the one-way Google Drive to local filesystem
// mirror: item classification, the export table for native documents,
// collision-aware local naming, freshness decisions, atomic materialization,
// and the tree walker that drives them.
//
// The walker owns a NameRegistry for the duration of one Run. Names are
// resolved sequentially in listing order before any content for that page is
// fetched, so the disambiguation suffixes are reproducible no matter how many
// download workers run. All filesystem access goes through an afero.Fs.
package mirror
