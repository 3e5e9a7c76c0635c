// Command folioblog serves a Contentful-backed portfolio blog and inspects
// its content from the terminal.
package main

// version is set at build time via ldflags.
var version = "dev"

func main() {
	Execute()
}
