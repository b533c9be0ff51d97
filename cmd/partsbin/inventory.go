package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kalambet/partsbin/internal/inventory"
)

var inventoryCmd = &cobra.Command{
	Use:     "inventory",
	Aliases: []string{"inv"},
	Short:   "Manage inventories",
}

var inventoryListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List inventories",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			invs, err := a.manager.List(ctx)
			if err != nil {
				return err
			}
			active := a.manager.Active().ID
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "\tNAME\tFILE\tCREATED")
			for _, inv := range invs {
				mark := ""
				if inv.ID == active {
					mark = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", mark, inv.Name, inv.Path, inv.CreatedAt.Local().Format("2006-01-02"))
			}
			return tw.Flush()
		})
	},
}

var inventoryCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an inventory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		switchTo, _ := cmd.Flags().GetBool("switch")
		return withApp(cmd, func(ctx context.Context, a *app) error {
			inv, err := a.manager.Create(ctx, args[0])
			if err != nil {
				return err
			}
			printSuccess("Created inventory %s (%s)", inv.Name, inv.Path)
			if switchTo {
				if _, err := a.manager.Switch(ctx, inv.ID); err != nil {
					return err
				}
				printSuccess("Switched to %s", inv.Name)
			}
			return nil
		})
	},
}

var inventorySwitchCmd = &cobra.Command{
	Use:   "switch <name|id>",
	Short: "Make an inventory the active one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			inv, err := a.manager.Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			if inv, err = a.manager.Switch(ctx, inv.ID); err != nil {
				return err
			}
			printSuccess("Switched to %s", inv.Name)
			return nil
		})
	},
}

var inventoryCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the active inventory",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, a *app, svc *inventory.Service) error {
			sum, err := svc.Summarize(ctx)
			if err != nil {
				return err
			}
			inv := a.manager.Active()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", colorize(colorBold, inv.Name), inv.Path)
			fmt.Fprintf(out, "  %d component(s), %d unit(s)\n", sum.Components, sum.Units)
			for _, c := range a.registry.List() {
				if n := sum.ByType[c.Name]; n > 0 {
					fmt.Fprintf(out, "  %-20s %d\n", c.Name, n)
				}
			}
			return nil
		})
	},
}

var inventoryDeleteCmd = &cobra.Command{
	Use:     "delete <name|id>",
	Aliases: []string{"rm"},
	Short:   "Delete an inventory that is not active",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		removeFile, _ := cmd.Flags().GetBool("remove-file")
		return withApp(cmd, func(ctx context.Context, a *app) error {
			inv, err := a.manager.Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			if err := a.manager.Delete(ctx, inv.ID, removeFile); err != nil {
				return err
			}
			printSuccess("Deleted inventory %s", inv.Name)
			return nil
		})
	},
}

func init() {
	inventoryCreateCmd.Flags().Bool("switch", false, "switch to the new inventory")
	inventoryDeleteCmd.Flags().Bool("remove-file", false, "also delete the database file")
	inventoryCmd.AddCommand(
		inventoryListCmd,
		inventoryCreateCmd,
		inventorySwitchCmd,
		inventoryCurrentCmd,
		inventoryDeleteCmd,
	)
}
