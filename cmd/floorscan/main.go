// Package main provides the entry point for the floorscan CLI.
//
// floorscan reads room measurements from floor-plan images. The image is
// published to an image host, a vision model reads the labels from the
// hosted URL, and the answer is rendered as a table.
//
// Usage:
//
//	floorscan serve
//	floorscan extract <image>...
//	floorscan history [id]
//
// See --help for all available options.
package main

// main is the entry point for floorscan.
func main() {
	Execute()
}
