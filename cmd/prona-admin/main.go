package main

import (
	"os"

	"github.com/prona-platform/prona/internal/admin"
)

func main() {
	os.Exit(admin.Execute())
}
