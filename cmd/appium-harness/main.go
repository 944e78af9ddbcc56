// Command appium-harness opens Appium sessions and resolves app elements.
package main

import "github.com/devicelab-dev/appium-harness/pkg/cli"

func main() {
	cli.Execute()
}
