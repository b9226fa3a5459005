// Command copyengine runs a copy engine between a host memory and a device
// memory and reports how long a memcpy or a memset takes.
package main

import (
	"log"
	"os"

	"github.com/tebeka/atexit"
)

func main() {
	if err := loadEnvFile(".env"); err != nil {
		log.Fatal(err)
	}

	cfg, err := configFromEnv(os.LookupEnv)
	if err != nil {
		log.Fatal(err)
	}

	if err := newRootCmd(cfg, os.Stdout).Execute(); err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
