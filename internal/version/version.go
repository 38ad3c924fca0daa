// ABOUTME: Product and version constants
// ABOUTME: Reported by the CLI and the TUI header
package version

const (
	Version = "0.3.0"
	Product = "Resonate Renderer"
)

// String is the product name followed by the version
func String() string {
	return Product + " " + Version
}
