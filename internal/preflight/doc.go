// Package preflight provides readiness checks for the filesystem paths and
// encoders imgbatch depends on.
//
// These checks run in two contexts:
//   - The run and watch commands call RunAll before touching the output
//     directory and stop when any check fails.
//   - The CLI "imgbatch check" command renders every result as a table.
package preflight
