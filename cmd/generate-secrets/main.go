package main

import (
	"flag"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/sadiqgoni/GreenCycle/internal/utils"
)

func main() {
	var envFile string
	var overwrite bool
	var size int
	flag.StringVar(&envFile, "env-file", "", "Write the secrets into this dotenv file instead of printing them")
	flag.BoolVar(&overwrite, "force", false, "Replace secrets already present in -env-file")
	flag.IntVar(&size, "bytes", 32, "Random bytes per secret")
	flag.Parse()

	secrets, err := utils.GenerateJWTSecrets(size)
	if err != nil {
		log.Fatalf("Failed to generate secrets: %v", err)
	}

	if envFile == "" {
		keys := make([]string, 0, len(secrets))
		for key := range secrets {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Printf("%s=%s\n", key, secrets[key])
		}
		return
	}

	written, err := utils.MergeEnvFile(envFile, secrets, overwrite)
	if err != nil {
		log.Fatalf("Failed to update %s: %v", envFile, err)
	}
	if len(written) == 0 {
		fmt.Printf("%s already has JWT secrets, nothing written (use -force to rotate)\n", envFile)
		return
	}
	fmt.Printf("Wrote %s to %s\n", strings.Join(written, ", "), envFile)
	if overwrite {
		fmt.Println("Rotating secrets invalidates every issued token.")
	}
}
