// Command dotlock runs commands under NFS-safe lock files and inspects them.
package main

import "github.com/jvs-project/dotlock/internal/cli"

func main() {
	cli.Execute()
}
