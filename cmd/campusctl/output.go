package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fastygo/campus/domain"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSnapshot(flags *globalFlags, snap domain.Snapshot) error {
	if flags.json {
		return printJSON(snap)
	}
	if snap.IsAuthenticated {
		success("Signed in as %s (%s)", snap.User.DisplayName(), snap.Strategy)
	} else {
		warn("Not signed in (%s)", snap.Status)
		if snap.CachedUser != nil {
			info("Last known user: %s", snap.CachedUser.DisplayName())
		}
	}
	if snap.LastVerifiedAt != nil {
		info("Verified at %s", snap.LastVerifiedAt.Local().Format("2006-01-02 15:04:05"))
	}
	if snap.LastError != "" {
		info("%s", snap.LastError)
	}
	return nil
}

func printRedirects(flags *globalFlags, a *app) {
	if flags.json {
		return
	}
	for _, target := range a.routes.Redirects() {
		info("Redirected to %s", target)
	}
}

// readSecret reads one line from stdin, prompting when stdin is a terminal.
func readSecret(prompt string) (string, error) {
	if fi, err := os.Stdin.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
		fmt.Fprint(os.Stderr, prompt)
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.ToLower(prompt), ": "), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
