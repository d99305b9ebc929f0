package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/fleet_backend/utils"
)

// token-gen mints an API token for a tenant, for local development and for
// wiring up service-to-service callers.
func main() {
	userUid := flag.String("uid", "", "Tenant uid to mint the token for (required)")
	role := flag.String("role", "user", "Role claim: user or admin")
	flag.Parse()

	if strings.TrimSpace(*userUid) == "" {
		flag.Usage()
		os.Exit(2)
	}

	token, err := utils.JwtGenerate(*userUid, *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
