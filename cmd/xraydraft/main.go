// Command xraydraft runs the local test-case drafting tool.
package main

import "github.com/mesh-intelligence/xraydraft/internal/cli"

func main() {
	cli.Execute()
}
