/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var uninstallForce bool

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Create the empty schedule",
	Long: `Create the schedule table and its overlap guard.

Fails if the schedule is already installed.`,
	RunE: runInstall,
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the schedule and every entry in it",
	Long: `Drop the schedule table, its overlap guard and all schedule entries.

WARNING: This action is irreversible!

Examples:
  # Interactive uninstall (will prompt for confirmation)
  grimnirsched uninstall

  # Uninstall without confirmation
  grimnirsched uninstall --force
`,
	RunE: runUninstall,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the schedule is installed",
	RunE:  runStatus,
}

func init() {
	uninstallCmd.Flags().BoolVarP(&uninstallForce, "force", "f", false, "Skip confirmation prompt")
	rootCmd.AddCommand(installCmd, uninstallCmd, statusCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	svc, _, closeDB, err := openScheduler()
	if err != nil {
		return err
	}
	defer closeDB()

	if err := svc.Install(cmd.Context()); err != nil {
		return fmt.Errorf("install schedule: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Schedule installed.")
	return nil
}

func runUninstall(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	if !uninstallForce {
		fmt.Fprintln(cmd.OutOrStdout(), "This will DELETE the schedule and every entry in it. This action CANNOT be undone!")
		fmt.Fprint(cmd.OutOrStdout(), "Type 'yes' to confirm: ")
		reader := bufio.NewReader(os.Stdin)
		response, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		if strings.TrimSpace(strings.ToLower(response)) != "yes" {
			fmt.Fprintln(cmd.OutOrStdout(), "Uninstall cancelled.")
			return nil
		}
	}

	svc, _, closeDB, err := openScheduler()
	if err != nil {
		return err
	}
	defer closeDB()

	if err := svc.Uninstall(cmd.Context()); err != nil {
		return fmt.Errorf("uninstall schedule: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Schedule uninstalled.")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	svc, _, closeDB, err := openScheduler()
	if err != nil {
		return err
	}
	defer closeDB()

	installed, err := svc.IsInstalled(cmd.Context())
	if err != nil {
		return err
	}
	state := "not installed"
	if installed {
		state = "installed"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Schedule is %s (backend %s).\n", state, cfg.DBBackend)
	return nil
}
