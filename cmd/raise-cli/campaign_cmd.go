package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

func campaignUsage() string {
	return strings.Join([]string{
		"Usage: raise-cli campaign <subcommand> [flags]",
		"",
		"Subcommands:",
		"  kickoff --target AMOUNT --days N [--beneficiary ADDR]",
		"  give --id ID --amount AMOUNT",
		"  undo --id ID --amount AMOUNT",
		"  withdraw --id ID",
		"  refund --id ID",
		"  get --id ID",
		"  count",
		"  success --id ID",
		"  raised --id ID [--contributor ADDR]",
		"  benefactors --id ID",
		"  events [--id ID] [--limit N]",
	}, "\n")
}

func runCampaignCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, campaignUsage())
		return 1
	}
	switch args[0] {
	case "kickoff":
		return runCampaignKickOff(args[1:], stdout, stderr)
	case "give":
		return runCampaignAmount("campaign give", "campaign_give", args[1:], stdout, stderr)
	case "undo":
		return runCampaignAmount("campaign undo", "campaign_undoGiving", args[1:], stdout, stderr)
	case "withdraw":
		return runCampaignByID("campaign withdraw", "campaign_withdrawal", args[1:], stdout, stderr)
	case "refund":
		return runCampaignByID("campaign refund", "campaign_refund", args[1:], stdout, stderr)
	case "get":
		return runCampaignByID("campaign get", "campaign_get", args[1:], stdout, stderr)
	case "success":
		return runCampaignByID("campaign success", "campaign_checkSuccess", args[1:], stdout, stderr)
	case "benefactors":
		return runCampaignByID("campaign benefactors", "campaign_getBenefactors", args[1:], stdout, stderr)
	case "count":
		fs := newFlagSet("campaign count", stderr, campaignUsage())
		if !parseFlags(fs, args[1:], stderr) {
			return 1
		}
		return invoke("campaign_count", nil, stdout, stderr)
	case "raised":
		return runCampaignRaised(args[1:], stdout, stderr)
	case "events":
		return runCampaignEvents(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown campaign subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, campaignUsage())
		return 1
	}
}

func runCampaignKickOff(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("campaign kickoff", stderr, campaignUsage())
	var (
		target      string
		days        uint
		beneficiary string
	)
	fs.StringVar(&target, "target", "", "fundraising target in base units (supports 100e18 shorthand)")
	fs.UintVar(&days, "days", 0, "fundraising window in days (1-30)")
	fs.StringVar(&beneficiary, "beneficiary", "", "beneficiary address (defaults to the token subject)")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	normalized, err := normalizeAmount("--target", target)
	if err != nil {
		return printError(stderr, err.Error())
	}
	if days == 0 {
		return printError(stderr, "--days is required")
	}
	if days > 1<<32-1 {
		return printError(stderr, "--days is out of range")
	}
	params := map[string]interface{}{
		"target":       normalized,
		"durationDays": days,
	}
	if b := strings.TrimSpace(beneficiary); b != "" {
		params["beneficiary"] = b
	}
	return invoke("campaign_kickOff", params, stdout, stderr)
}

func runCampaignAmount(name, method string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet(name, stderr, campaignUsage())
	var id, amount string
	fs.StringVar(&id, "id", "", "campaign id")
	fs.StringVar(&amount, "amount", "", "amount in base units (supports 100e18 shorthand)")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if err := validateCampaignID(id); err != nil {
		return printError(stderr, err.Error())
	}
	normalized, err := normalizeAmount("--amount", amount)
	if err != nil {
		return printError(stderr, err.Error())
	}
	return invoke(method, map[string]interface{}{"id": strings.TrimSpace(id), "amount": normalized}, stdout, stderr)
}

func runCampaignByID(name, method string, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet(name, stderr, campaignUsage())
	var id string
	fs.StringVar(&id, "id", "", "campaign id")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if err := validateCampaignID(id); err != nil {
		return printError(stderr, err.Error())
	}
	return invoke(method, map[string]interface{}{"id": strings.TrimSpace(id)}, stdout, stderr)
}

func runCampaignRaised(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("campaign raised", stderr, campaignUsage())
	var id, contributor string
	fs.StringVar(&id, "id", "", "campaign id")
	fs.StringVar(&contributor, "contributor", "", "contributor address (defaults to the token subject)")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if err := validateCampaignID(id); err != nil {
		return printError(stderr, err.Error())
	}
	params := map[string]interface{}{"id": strings.TrimSpace(id)}
	if c := strings.TrimSpace(contributor); c != "" {
		params["contributor"] = c
	}
	return invoke("campaign_trackRaisedMoney", params, stdout, stderr)
}

func runCampaignEvents(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("campaign events", stderr, campaignUsage())
	var id string
	var limit int
	fs.StringVar(&id, "id", "0", "campaign id (0 lists every event)")
	fs.IntVar(&limit, "limit", 0, "maximum number of events")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	if _, err := strconv.ParseUint(strings.TrimSpace(id), 10, 64); err != nil {
		return printError(stderr, "--id must be a non-negative integer")
	}
	if limit < 0 {
		return printError(stderr, "--limit must not be negative")
	}
	params := map[string]interface{}{"id": strings.TrimSpace(id)}
	if limit > 0 {
		params["limit"] = limit
	}
	return invoke("campaign_listEvents", params, stdout, stderr)
}

func validateCampaignID(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fmt.Errorf("--id is required")
	}
	id, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("--id must be a positive integer")
	}
	return nil
}

// normalizeAmount converts decimal input with optional underscores and an
// eN exponent into a base-10 integer string.
func normalizeAmount(flagName, value string) (string, error) {
	trimmed := strings.ReplaceAll(strings.TrimSpace(value), "_", "")
	if trimmed == "" {
		return "", fmt.Errorf("%s is required", flagName)
	}
	exponent := 0
	base := trimmed
	if idx := strings.IndexAny(trimmed, "eE"); idx != -1 {
		base = trimmed[:idx]
		exp, err := strconv.Atoi(trimmed[idx+1:])
		if err != nil || exp < 0 || exp > 77 {
			return "", fmt.Errorf("invalid exponent in %s", flagName)
		}
		exponent = exp
	}
	base = strings.TrimPrefix(base, "+")
	if strings.HasPrefix(base, "-") {
		return "", fmt.Errorf("%s must be positive", flagName)
	}
	parts := strings.Split(base, ".")
	if len(parts) > 2 {
		return "", fmt.Errorf("invalid %s format", flagName)
	}
	integer, fraction := parts[0], ""
	if len(parts) == 2 {
		fraction = strings.TrimRight(parts[1], "0")
	}
	digits := integer + fraction
	if digits == "" || !isDigits(digits) {
		return "", fmt.Errorf("invalid %s format", flagName)
	}
	if len(fraction) > exponent {
		return "", fmt.Errorf("%s must be a whole number of base units", flagName)
	}
	digits += strings.Repeat("0", exponent-len(fraction))
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return "", fmt.Errorf("%s must be positive", flagName)
	}
	return digits, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
