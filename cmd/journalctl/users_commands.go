package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"journal-backend/internal/auth"
	"journal-backend/internal/models"
	"journal-backend/internal/store"
	"journal-backend/internal/workflow"
)

func newUsersCommand(ctx *commandContext) *cobra.Command {
	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Manage portal accounts",
	}
	usersCmd.AddCommand(newUsersListCommand(ctx))
	usersCmd.AddCommand(newUsersCreateCommand(ctx))
	usersCmd.AddCommand(newUsersGrantCommand(ctx))
	return usersCmd
}

func newUsersListCommand(ctx *commandContext) *cobra.Command {
	var roleFlag string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts, optionally by role",
		RunE: func(cmd *cobra.Command, args []string) error {
			var role workflow.Role
			if roleFlag != "" {
				parsed, ok := workflow.ParseRole(roleFlag)
				if !ok {
					return fmt.Errorf("unknown role %q", roleFlag)
				}
				role = parsed
			}
			return ctx.withStore(cmd.Context(), func(st store.Store) error {
				users, err := st.ListUsers(cmd.Context(), role)
				if err != nil {
					return err
				}
				if len(users) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No users found")
					return nil
				}
				rows := make([][]string, 0, len(users))
				for _, u := range users {
					rows = append(rows, []string{
						u.Email,
						u.Name,
						roleNames(u.Roles),
						string(u.ActiveRole()),
						yesNo(u.IsFounder),
						humanize.Time(u.CreatedAt),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Email", "Name", "Roles", "Active", "Founder", "Joined"}, rows, nil))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&roleFlag, "role", "", "Only list users holding this role")
	return cmd
}

func newUsersCreateCommand(ctx *commandContext) *cobra.Command {
	var (
		email    string
		name     string
		password string
		roles    []string
		founder  bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account with the given roles",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseRoles(roles)
			if err != nil {
				return err
			}
			if len(password) < 6 {
				return fmt.Errorf("password must be at least 6 characters")
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			return ctx.withStore(cmd.Context(), func(st store.Store) error {
				u := &models.User{
					Email:        strings.ToLower(strings.TrimSpace(email)),
					Name:         name,
					PasswordHash: hash,
					Roles:        parsed,
					IsFounder:    founder,
				}
				if err := st.CreateUser(cmd.Context(), u); err != nil {
					if errors.Is(err, store.ErrAlreadyExists) {
						return fmt.Errorf("user %s already exists", u.Email)
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s)\n", u.Email, roleNames(u.Roles))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&password, "password", "", "Initial password")
	cmd.Flags().StringSliceVar(&roles, "roles", []string{string(workflow.RoleAuthor)}, "Roles to grant")
	cmd.Flags().BoolVar(&founder, "founder", false, "Mark the account as a founder")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newUsersGrantCommand(ctx *commandContext) *cobra.Command {
	var designation, designationRole string
	cmd := &cobra.Command{
		Use:   "grant <email> <role>...",
		Short: "Replace the role list of an account",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			roles, err := parseRoles(args[1:])
			if err != nil {
				return err
			}
			return ctx.withStore(cmd.Context(), func(st store.Store) error {
				u, err := st.GetUserByEmail(cmd.Context(), strings.ToLower(strings.TrimSpace(args[0])))
				if err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return fmt.Errorf("no user with email %s", args[0])
					}
					return err
				}
				if u.IsFounder && !containsRole(roles, workflow.RoleAdmin) {
					return fmt.Errorf("founders keep the admin role")
				}
				updated, err := st.SetRoles(cmd.Context(), u.ID, roles, designation, designationRole)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s now holds %s\n", updated.Email, roleNames(updated.Roles))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&designation, "designation", "", "Editorial board designation")
	cmd.Flags().StringVar(&designationRole, "designation-role", "", "Role shown next to the designation")
	return cmd
}

func containsRole(roles []workflow.Role, role workflow.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
