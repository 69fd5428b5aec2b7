package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type globalFlags struct {
	route string
	json  bool
}

func main() {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "campusctl",
		Short: "Session-aware client for the university and course discovery API",
		Long: `campusctl signs in to the course discovery backend and keeps the session
alive across runs. Cookies and the cached identity live in local storage
(bbolt, Redis or memory, see STORAGE_DRIVER).

Run "campusctl agent" to expose the session to a UI over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&flags.route, "route", "/", "client route the command runs on")
	rootCmd.PersistentFlags().BoolVar(&flags.json, "json", false, "print JSON instead of text")

	rootCmd.AddCommand(
		loginCmd(flags),
		registerCmd(flags),
		logoutCmd(flags),
		statusCmd(flags),
		checkCmd(flags),
		refreshCmd(flags),
		probeCmd(flags),
		navigateCmd(flags),
		universitiesCmd(flags),
		coursesCmd(flags),
		compareCmd(flags),
		feedbackCmd(flags),
		chatCmd(flags),
		agentCmd(flags),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		errorMsg("%s", err)
		os.Exit(1)
	}
}

func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

func warn(format string, args ...any) {
	fmt.Printf("\033[33m!\033[0m %s\n", fmt.Sprintf(format, args...))
}

func errorMsg(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "\033[31m✗\033[0m %s\n", fmt.Sprintf(format, args...))
}
