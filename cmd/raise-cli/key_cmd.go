package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"raisemoney/cmd/internal/passphrase"
	"raisemoney/core/types"
	"raisemoney/crypto"
	"raisemoney/rpc"
)

const envAuthSecret = "RAISE_AUTH_SECRET"

// newPassSource is replaced in tests.
var newPassSource = func() *passphrase.Source { return passphrase.NewSource(envKeyPass) }

func runKeygen(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("keygen", stderr, "Usage: raise-cli keygen --out FILE")
	var out string
	fs.StringVar(&out, "out", "", "keystore path to create")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return printError(stderr, "--out is required")
	}
	if _, err := os.Stat(out); err == nil {
		return printError(stderr, fmt.Sprintf("%s already exists", out))
	}
	pass, err := newPassSource().Get()
	if err != nil {
		return printError(stderr, err.Error())
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return printError(stderr, fmt.Sprintf("generate key: %v", err))
	}
	if err := crypto.SaveToKeystore(out, key, pass); err != nil {
		return printError(stderr, fmt.Sprintf("write keystore: %v", err))
	}
	fmt.Fprintf(stdout, "Principal: %s\nKeystore: %s\n", key.PubKey().Address().String(), out)
	return 0
}

func runAddress(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("address", stderr, "Usage: raise-cli address --keystore FILE")
	var path string
	fs.StringVar(&path, "keystore", "", "keystore path")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	principal, err := principalFromKeystore(path)
	if err != nil {
		return printError(stderr, err.Error())
	}
	fmt.Fprintln(stdout, principal.String())
	return 0
}

func runTokenJWT(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("token-jwt", stderr, "Usage: raise-cli token-jwt --keystore FILE|--principal ADDR --secret S [--ttl 1h] [--issuer I] [--audience A]")
	var (
		keystorePath string
		principalArg string
		secret       string
		issuer       string
		audience     string
		ttl          time.Duration
	)
	fs.StringVar(&keystorePath, "keystore", "", "keystore holding the caller key")
	fs.StringVar(&principalArg, "principal", "", "caller principal (instead of --keystore)")
	fs.StringVar(&secret, "secret", "", "HMAC secret shared with the server (defaults to $"+envAuthSecret+")")
	fs.StringVar(&issuer, "issuer", "", "iss claim")
	fs.StringVar(&audience, "audience", "", "aud claim")
	fs.DurationVar(&ttl, "ttl", time.Hour, "token lifetime; 0 issues a token without expiry")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if secret = strings.TrimSpace(secret); secret == "" {
		secret = strings.TrimSpace(os.Getenv(envAuthSecret))
	}
	if secret == "" {
		return printError(stderr, "--secret is required")
	}
	if ttl < 0 {
		return printError(stderr, "--ttl must not be negative")
	}
	keystorePath = strings.TrimSpace(keystorePath)
	principalArg = strings.TrimSpace(principalArg)
	if (keystorePath == "") == (principalArg == "") {
		return printError(stderr, "exactly one of --keystore or --principal is required")
	}
	var (
		subject types.Principal
		err     error
	)
	if keystorePath != "" {
		subject, err = principalFromKeystore(keystorePath)
	} else {
		subject, err = types.ParsePrincipal(principalArg)
	}
	if err != nil {
		return printError(stderr, err.Error())
	}
	token, err := rpc.IssueToken(secret, subject, issuer, audience, ttl, time.Now())
	if err != nil {
		return printError(stderr, err.Error())
	}
	fmt.Fprintln(stdout, token)
	return 0
}

func principalFromKeystore(path string) (types.Principal, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return types.ZeroPrincipal, fmt.Errorf("--keystore is required")
	}
	pass, err := newPassSource().AllowEmpty().Get()
	if err != nil {
		return types.ZeroPrincipal, err
	}
	key, err := crypto.LoadFromKeystore(path, pass)
	if err != nil {
		return types.ZeroPrincipal, fmt.Errorf("load keystore: %w", err)
	}
	return types.PrincipalFromBytes(key.PubKey().Address().Bytes())
}
