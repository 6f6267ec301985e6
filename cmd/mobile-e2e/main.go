// Command mobile-e2e runs the mobile end-to-end suite.
package main

import "github.com/devicelab-dev/mobile-e2e/pkg/cli"

func main() {
	cli.Execute()
}
