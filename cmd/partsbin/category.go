package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kalambet/partsbin/internal/apperror"
)

var categoryCmd = &cobra.Command{
	Use:     "category",
	Aliases: []string{"type"},
	Short:   "Manage component categories",
}

var categoryListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List categories and their attributes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tID\tATTRIBUTES\t")
			for _, c := range a.registry.List() {
				name := c.Name
				if !c.BuiltIn {
					name += " *"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t\n", name, c.ID, strings.Join(c.Attributes, ", "))
			}
			return tw.Flush()
		})
	},
}

var categoryAddCmd = &cobra.Command{
	Use:   "add <name> <attribute>...",
	Short: "Define a new category",
	Long: `Define a new category with an ordered list of attributes.

Examples:
  partsbin category add "Op Amp" Channels "Gain Bandwidth" Package`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			c, err := a.registry.Add(ctx, args[0], args[1:])
			if err != nil {
				return err
			}
			printSuccess("Added category %s (%s): %s", c.Name, c.ID, strings.Join(c.Attributes, ", "))
			return nil
		})
	},
}

var categoryDeleteCmd = &cobra.Command{
	Use:     "delete <name|id>",
	Aliases: []string{"rm"},
	Short:   "Delete a custom category and its components in every inventory",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		return withApp(cmd, func(ctx context.Context, a *app) error {
			n, err := a.manager.DeleteCategory(ctx, a.registry, args[0], confirm)
			if err != nil {
				if ae, ok := apperror.AsAppError(err); ok && !confirm {
					if count, ok := ae.Details["components"]; ok {
						printWarning("This deletes %v component(s) across all inventories. Use --confirm to proceed.", count)
						return nil
					}
				}
				return err
			}
			printSuccess("Deleted category %s and %d component(s)", args[0], n)
			return nil
		})
	},
}

func init() {
	categoryDeleteCmd.Flags().Bool("confirm", false, "confirm deletion of the category's components")
	categoryCmd.AddCommand(categoryListCmd, categoryAddCmd, categoryDeleteCmd)
}
