package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/mwillard/beacon/internal/contacts"
	"github.com/mwillard/beacon/internal/db"
	"github.com/mwillard/beacon/internal/models"
)

func newContactsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contacts",
		Short: "Manage emergency contacts",
	}

	cmd.AddCommand(newContactsListCmd())
	cmd.AddCommand(newContactsAddCmd())
	cmd.AddCommand(newContactsEnableCmd(true))
	cmd.AddCommand(newContactsEnableCmd(false))
	cmd.AddCommand(newContactsRemoveCmd())
	return cmd
}

// directoryFromConfig opens the database named in the config file and wraps
// it in a contact directory.
func directoryFromConfig(configPath string) (*contacts.Directory, error) {
	cfg, err := loadConfigOrDefault(configPath)
	if err != nil {
		return nil, err
	}
	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return nil, err
	}
	return contacts.New(gormDB)
}

func newContactsListCmd() *cobra.Command {
	var (
		configPath  string
		enabledOnly bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List emergency contacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := directoryFromConfig(configPath)
			if err != nil {
				return err
			}
			list, err := dir.List(enabledOnly)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No contacts found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tPHONE\tRELATIONSHIP\tPRIORITY\tENABLED")
			for _, c := range list {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%t\n",
					c.ID, c.Name, c.Phone, c.Relationship, c.Priority, c.Enabled)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "beacon.yaml", "path to Beacon config file")
	cmd.Flags().BoolVar(&enabledOnly, "enabled", false, "show only enabled contacts")
	return cmd
}

func newContactsAddCmd() *cobra.Command {
	var (
		configPath   string
		phone        string
		relationship string
		priority     int
		enabled      bool
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add an emergency contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := directoryFromConfig(configPath)
			if err != nil {
				return err
			}
			contact := models.Contact{
				Name:         args[0],
				Phone:        phone,
				Relationship: relationship,
				Priority:     priority,
				Enabled:      enabled,
			}
			if err := dir.Add(&contact); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added contact %d: %s (%s)\n", contact.ID, contact.Name, contact.Phone)
			if !contact.Enabled {
				fmt.Fprintln(cmd.OutOrStdout(), "Contact is disabled; enable it with `beacon contacts enable`.")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "beacon.yaml", "path to Beacon config file")
	cmd.Flags().StringVar(&phone, "phone", "", "phone number in E.164 form (required)")
	cmd.Flags().StringVar(&relationship, "relationship", "", "relationship to the device wearer")
	cmd.Flags().IntVar(&priority, "priority", 1, "notification priority (1 = highest)")
	cmd.Flags().BoolVar(&enabled, "enabled", false, "enable the contact immediately")
	cmd.MarkFlagRequired("phone")
	return cmd
}

func newContactsEnableCmd(enable bool) *cobra.Command {
	use, short := "enable <id>", "Enable a contact for alert delivery"
	if !enable {
		use, short = "disable <id>", "Disable a contact without deleting it"
	}

	var configPath string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid contact id %q", args[0])
			}
			dir, err := directoryFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := dir.SetEnabled(uint(id), enable); err != nil {
				return err
			}
			state := "enabled"
			if !enable {
				state = "disabled"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Contact %d %s\n", id, state)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "beacon.yaml", "path to Beacon config file")
	return cmd
}

func newContactsRemoveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid contact id %q", args[0])
			}
			dir, err := directoryFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := dir.Delete(uint(id)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Contact %d removed\n", id)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "beacon.yaml", "path to Beacon config file")
	return cmd
}
