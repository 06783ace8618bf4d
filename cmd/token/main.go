// Command token issues a signed access token for local testing.  The
// API does not manage users; any identity provider sharing JWT_SECRET
// can issue tokens with the same claims.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/seat-reservation/internal/middleware"
	"github.com/iliyamo/seat-reservation/internal/utils"
)

func main() {
	sub := flag.String("sub", "", "requester id placed in the sub claim")
	role := flag.String("role", middleware.RoleCustomer, "CUSTOMER or OWNER")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()
	r := strings.ToUpper(*role)
	if r != middleware.RoleCustomer && r != middleware.RoleOwner {
		fmt.Fprintf(os.Stderr, "unknown role %q\n", *role)
		os.Exit(2)
	}
	tok, err := utils.NewAccessToken(os.Getenv("JWT_SECRET"), *sub, r, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(tok.Token)
}
