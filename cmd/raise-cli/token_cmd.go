package main

import (
	"fmt"
	"io"
	"strings"
)

func tokenUsage() string {
	return strings.Join([]string{
		"Usage: raise-cli token <subcommand> [flags]",
		"",
		"Subcommands:",
		"  info",
		"  balance --owner ADDR",
		"  allowance --owner ADDR [--spender ADDR]",
		"  approve --amount AMOUNT [--spender ADDR]   spender defaults to campaign custody",
		"  transfer --to ADDR --amount AMOUNT",
		"  mint --to ADDR --amount AMOUNT             dev networks only",
	}, "\n")
}

func runTokenCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, tokenUsage())
		return 1
	}
	switch args[0] {
	case "info":
		fs := newFlagSet("token info", stderr, tokenUsage())
		if !parseFlags(fs, args[1:], stderr) {
			return 1
		}
		return invoke("token_metadata", nil, stdout, stderr)
	case "balance":
		return runTokenBalance(args[1:], stdout, stderr)
	case "allowance":
		return runTokenAllowance(args[1:], stdout, stderr)
	case "approve":
		return runTokenApprove(args[1:], stdout, stderr)
	case "transfer":
		return runTokenMove("token transfer", "token_transfer", args[1:], stdout, stderr)
	case "mint":
		return runTokenMove("token mint", "token_mint", args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown token subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, tokenUsage())
		return 1
	}
}

func runTokenBalance(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("token balance", stderr, tokenUsage())
	var owner string
	fs.StringVar(&owner, "owner", "", "account address")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if strings.TrimSpace(owner) == "" {
		return printError(stderr, "--owner is required")
	}
	return invoke("token_balanceOf", map[string]interface{}{"owner": strings.TrimSpace(owner)}, stdout, stderr)
}

func runTokenAllowance(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("token allowance", stderr, tokenUsage())
	var owner, spender string
	fs.StringVar(&owner, "owner", "", "account address")
	fs.StringVar(&spender, "spender", "", "spender address (defaults to campaign custody)")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if strings.TrimSpace(owner) == "" {
		return printError(stderr, "--owner is required")
	}
	params := map[string]interface{}{"owner": strings.TrimSpace(owner)}
	if s := strings.TrimSpace(spender); s != "" {
		params["spender"] = s
	}
	return invoke("token_allowance", params, stdout, stderr)
}

func runTokenApprove(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("token approve", stderr, tokenUsage())
	var spender, amount string
	fs.StringVar(&spender, "spender", "", "spender address (defaults to campaign custody)")
	fs.StringVar(&amount, "amount", "", "allowance in base units; 0 revokes")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	normalized := strings.TrimSpace(amount)
	if normalized != "0" {
		var err error
		if normalized, err = normalizeAmount("--amount", amount); err != nil {
			return printError(stderr, err.Error())
		}
	}
	params := map[string]interface{}{"amount": normalized}
	if s := strings.TrimSpace(spender); s != "" {
		params["spender"] = s
	}
	return invoke("token_approve", params, stdout, stderr)
}

func runTokenMove(name, method string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet(name, stderr, tokenUsage())
	var to, amount string
	fs.StringVar(&to, "to", "", "recipient address")
	fs.StringVar(&amount, "amount", "", "amount in base units (supports 100e18 shorthand)")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if strings.TrimSpace(to) == "" {
		return printError(stderr, "--to is required")
	}
	normalized, err := normalizeAmount("--amount", amount)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return invoke(method, map[string]interface{}{"to": strings.TrimSpace(to), "amount": normalized}, stdout, stderr)
}
