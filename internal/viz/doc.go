// Package viz renders run summaries and metric plots for the terminal.
//
// Styles are lipgloss; plots are asciigraph line charts of the per-iteration
// metric series a run records.
package viz
