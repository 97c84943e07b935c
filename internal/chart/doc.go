// Package chart turns evaluated panels into chart descriptions and renders
// them as SVG.
//
// Build produces a Config, the JSON shape a browser charting library
// consumes. RenderSVG draws the same Config server-side for embedding,
// e-mail reports and the CLI.
package chart
