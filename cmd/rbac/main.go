// Command rbac serves the RBAC admin API and seeds its store.
package main

import (
	"os"
)

func main() {
	os.Exit(Execute())
}
