// Command placepipe runs the directory enrichment pipeline.
package main

import "github.com/atlasdir/placepipe/cmd"

func main() {
	cmd.Execute()
}
