package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"journal-backend/internal/auth"
	"journal-backend/internal/models"
	"journal-backend/internal/store"
	"journal-backend/internal/workflow"
)

type seedUser struct {
	email   string
	name    string
	roles   []workflow.Role
	founder bool
}

var demoUsers = []seedUser{
	{"chief@journal.local", "Dana Chief", []workflow.Role{workflow.RoleAdmin, workflow.RoleEditor, workflow.RoleAuthor}, true},
	{"editor@journal.local", "Evan Editor", []workflow.Role{workflow.RoleEditor}, false},
	{"reviewer@journal.local", "Rita Reviewer", []workflow.Role{workflow.RoleReviewer, workflow.RoleAuthor}, false},
	{"copyeditor@journal.local", "Cole Copyeditor", []workflow.Role{workflow.RoleCopyEditor}, false},
	{"author@journal.local", "Alice Author", []workflow.Role{workflow.RoleAuthor}, false},
}

func newSeedCommand(ctx *commandContext) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create demo accounts and the first volume",
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return ctx.withStore(cmd.Context(), func(st store.Store) error {
				for _, su := range demoUsers {
					u := &models.User{
						Email:        su.email,
						Name:         su.name,
						PasswordHash: hash,
						Roles:        su.roles,
						IsFounder:    su.founder,
					}
					switch err := st.CreateUser(cmd.Context(), u); {
					case err == nil:
						fmt.Fprintf(out, "created %s (%s)\n", su.email, roleNames(su.roles))
					case errors.Is(err, store.ErrAlreadyExists):
						fmt.Fprintf(out, "exists  %s\n", su.email)
					default:
						return fmt.Errorf("create %s: %w", su.email, err)
					}
				}
				return seedVolume(cmd, st)
			})
		},
	}
	cmd.Flags().StringVar(&password, "password", "password123", "Password for every demo account")
	return cmd
}

func seedVolume(cmd *cobra.Command, st store.Store) error {
	volumes, err := st.ListVolumes(cmd.Context())
	if err != nil {
		return err
	}
	if len(volumes) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "exists  %d volume(s)\n", len(volumes))
		return nil
	}
	v := &models.Volume{Number: 1, Year: time.Now().Year(), Title: "Volume 1"}
	if err := st.CreateVolume(cmd.Context(), v); err != nil {
		return fmt.Errorf("create volume: %w", err)
	}
	is := &models.Issue{VolumeID: v.ID, Number: 1, Title: "Issue 1"}
	if err := st.CreateIssue(cmd.Context(), is); err != nil {
		return fmt.Errorf("create issue: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created volume %d (%d) with issue %d\n", v.Number, v.Year, is.Number)
	return nil
}
