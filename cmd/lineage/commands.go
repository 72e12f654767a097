package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	versionSvc "github.com/Sakenfor/pixsim7-sub004/internal/domain/services/versioning"
)

func rootCmd() *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "lineage",
		Short: "Operate the versioning store",
		Long: `lineage manages the versioning store configured by the environment
(.env is loaded): DATABASE_DRIVER, DATABASE_URL or SQLITE_PATH, TABLE_PREFIX.

Read commands print JSON to stdout.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&owner, "owner", "", "Owner ID to act as (default DEV_OWNER_ID)")

	cmd.AddCommand(
		migrateCmd(&owner),
		dropCmd(&owner),
		seedCmd(&owner),
		familiesCmd(&owner),
		familyCmd(&owner),
		timelineCmd(&owner),
		ancestryCmd(&owner),
		descendantsCmd(&owner),
	)

	return cmd
}

func migrateCmd(owner *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the schema",
		Args:  cobra.NoArgs,
		RunE: withApp(owner, func(ctx context.Context, a *app, _ []string) error {
			if err := a.store.Migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "schema ready (driver %s, prefix %q)\n", a.cfg.DatabaseDriver, a.cfg.TablePrefix)
			return nil
		}),
	}
}

func dropCmd(owner *string) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "drop",
		Short: "Drop the versioning tables",
		Args:  cobra.NoArgs,
		RunE: withApp(owner, func(ctx context.Context, a *app, _ []string) error {
			// Destructive operations are never allowed against production
			if a.cfg.Environment == "prod" {
				return errors.New("refusing to drop tables in the prod environment")
			}
			if !yes {
				return errors.New("pass --yes to drop all versioning tables")
			}
			if err := a.store.Drop(ctx); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "tables dropped (prefix %q)\n", a.cfg.TablePrefix)
			return nil
		}),
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the drop")
	return cmd
}

func familiesCmd(owner *string) *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "families",
		Short: "List the owner's families",
		Args:  cobra.NoArgs,
		RunE: withApp(owner, func(ctx context.Context, a *app, _ []string) error {
			families, err := a.families.ListFamilies(ctx, a.ownerID, &versionSvc.ListFamiliesRequest{
				Limit:  limit,
				Offset: offset,
			})
			if err != nil {
				return err
			}
			return a.printJSON(families)
		}),
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Page size (default server limit)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Page offset")
	return cmd
}

func familyCmd(owner *string) *cobra.Command {
	return &cobra.Command{
		Use:   "family <family-id>",
		Short: "Show a family with its version count and HEAD",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(owner, func(ctx context.Context, a *app, args []string) error {
			family, err := a.families.GetFamily(ctx, a.ownerID, args[0])
			if err != nil {
				return err
			}
			return a.printJSON(family)
		}),
	}
}

func timelineCmd(owner *string) *cobra.Command {
	return &cobra.Command{
		Use:   "timeline <family-id>",
		Short: "List a family's versions in order",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(owner, func(ctx context.Context, a *app, args []string) error {
			timeline, err := a.families.GetTimeline(ctx, a.ownerID, args[0])
			if err != nil {
				return err
			}
			return a.printJSON(timeline)
		}),
	}
}

func ancestryCmd(owner *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ancestry <entity-id>",
		Short: "Walk an entity's parents, nearest first",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(owner, func(ctx context.Context, a *app, args []string) error {
			ancestry, err := a.entities.GetAncestry(ctx, a.ownerID, args[0])
			if err != nil {
				return err
			}
			return a.printJSON(ancestry)
		}),
	}
}

func descendantsCmd(owner *string) *cobra.Command {
	return &cobra.Command{
		Use:   "descendants <entity-id>",
		Short: "List everything derived from an entity",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(owner, func(ctx context.Context, a *app, args []string) error {
			descendants, err := a.entities.GetDescendants(ctx, a.ownerID, args[0])
			if err != nil {
				return err
			}
			return a.printJSON(descendants)
		}),
	}
}
