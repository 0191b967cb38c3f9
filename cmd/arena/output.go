package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4ade80")).Bold(true)
	labelStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#4ade80"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#f87171")).Bold(true)
)

type field struct {
	label string
	value string
}

func printFields(fields []field) {
	width := 0
	for _, f := range fields {
		width = max(width, lipgloss.Width(f.label))
	}
	for _, f := range fields {
		value := f.value
		if value == "" {
			value = dimStyle.Render("-")
		}
		fmt.Printf("  %s  %s\n", labelStyle.Render(fmt.Sprintf("%-*s", width, f.label)), value)
	}
}

func printOK(msg string) {
	fmt.Println(okStyle.Render("✓ " + msg))
}

func printFailure(msg string) {
	fmt.Fprintln(os.Stderr, failStyle.Render("✗ "+msg))
}

func printHelp() {
	commands := []struct{ cmd, desc string }{
		{"arena status", "Show session, storage tiers and portal state"},
		{"arena login-public <id> <pw>", "Sign in as a public user"},
		{"arena login-player <id> <pw>", "Sign in as an academy player"},
		{"arena logout", "Clear the session and stored credentials"},
		{"arena portal-refresh [--force]", "Refresh the portal access token"},
		{"arena overview", "Fetch the player overview and cache the try-out id"},
		{"arena migrate", "Move legacy plaintext credentials into the secure tier"},
		{"arena keepalive", "Keep the portal session warm until interrupted"},
		{"arena help", "Show this help"},
	}

	fmt.Printf("\n  %s\n\n  Commands:\n", titleStyle.Render("A R E N A"))
	for _, c := range commands {
		fmt.Printf("    %s  %s\n", labelStyle.Render(fmt.Sprintf("%-32s", c.cmd)), dimStyle.Render(c.desc))
	}
	fmt.Println()
}
