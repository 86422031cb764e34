package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"sealtrack/internal/domain"
	"sealtrack/internal/infra/auth/jwtauth"
)

func runTokenIssue(args []string) int {
	fs := flag.NewFlagSet("token issue", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var signingKey string
	var issuer string
	var subject string
	var email string
	var roles string
	var ttl time.Duration
	var outPath string
	fs.StringVar(&signingKey, "signing-key", os.Getenv("JWT_SIGNING_KEY"), "HS256 signing key")
	fs.StringVar(&issuer, "issuer", "sealtrack", "token issuer")
	fs.StringVar(&subject, "subject", "", "principal subject")
	fs.StringVar(&email, "email", "", "principal email")
	fs.StringVar(&roles, "roles", "", "comma separated roles")
	fs.DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	fs.StringVar(&outPath, "out", "", "output path (default stdout)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if subject == "" {
		fmt.Fprintln(os.Stderr, "token issue requires --subject")
		return 1
	}
	if ttl <= 0 {
		fmt.Fprintln(os.Stderr, "--ttl must be positive")
		return 1
	}

	authenticator, err := jwtauth.NewAuthenticator(signingKey, issuer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init authenticator: %v\n", err)
		return 1
	}
	var roleList []string
	for _, r := range strings.Split(roles, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roleList = append(roleList, r)
		}
	}
	token, err := authenticator.Issue(domain.Principal{
		Subject: subject,
		Email:   domain.NormalizeEmail(email),
		Roles:   roleList,
	}, ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
		return 1
	}
	if err := writeOutput(outPath, []byte(token+"\n")); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}
