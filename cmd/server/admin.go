package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-crm-webhooks/internal/repo"
	"github.com/tbourn/go-crm-webhooks/internal/services"
)

// withSources opens the database and the token cache for one admin command.
func (a *app) withSources(cmd *cobra.Command, fn func(*services.SourceService) error) error {
	db, closeDB, err := a.openDB()
	if err != nil {
		return err
	}
	defer closeDB()
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}
	tokens, closeCache, err := a.openCache(cmd.Context())
	if err != nil {
		return err
	}
	defer closeCache()
	return fn(services.NewSourceService(db, tokens))
}

func newOrgsCmd(a *app) *cobra.Command {
	orgs := &cobra.Command{Use: "orgs", Short: "Manage organizations"}

	var name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an organization and print its id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSources(cmd, func(s *services.SourceService) error {
				org, err := s.CreateOrganization(cmd.Context(), name)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), org.ID)
				return nil
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "organization name")

	orgs.AddCommand(create)
	return orgs
}

func newSourcesCmd(a *app) *cobra.Command {
	sources := &cobra.Command{Use: "sources", Short: "Manage webhook sources"}

	var orgID, name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a webhook source and print its secret token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSources(cmd, func(s *services.SourceService) error {
				src, err := s.CreateSource(cmd.Context(), orgID, name)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), src.Token)
				return nil
			})
		},
	}
	create.Flags().StringVar(&orgID, "org", "", "organization id")
	create.Flags().StringVar(&name, "name", "", "source name, e.g. the channel it serves")
	_ = create.MarkFlagRequired("org")

	deactivate := &cobra.Command{
		Use:   "deactivate <token>",
		Short: "Deactivate a webhook source; its URL starts answering 404",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSources(cmd, func(s *services.SourceService) error {
				return s.Deactivate(cmd.Context(), args[0])
			})
		},
	}

	var listOrg string
	list := &cobra.Command{
		Use:   "list",
		Short: "List the webhook sources of an organization",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSources(cmd, func(s *services.SourceService) error {
				rows, err := s.List(cmd.Context(), listOrg)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tACTIVE\tCREATED")
				for _, r := range rows {
					fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", r.ID, r.Name, r.Active, r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"))
				}
				return tw.Flush()
			})
		},
	}
	list.Flags().StringVar(&listOrg, "org", "", "organization id")
	_ = list.MarkFlagRequired("org")

	sources.AddCommand(create, deactivate, list)
	return sources
}
