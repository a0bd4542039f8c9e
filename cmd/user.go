package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/igcseprep/internal/auth"
	"github.com/abhisek/igcseprep/internal/content"
	"github.com/abhisek/igcseprep/internal/ui/theme"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create <email>",
	Short: "Create an account, typically the first admin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, _ := cmd.Flags().GetString("password")
		name, _ := cmd.Flags().GetString("name")
		role, _ := cmd.Flags().GetString("role")

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.cfg.RequireJWTSecret(); err != nil {
			return err
		}

		svc := auth.NewService(a.cfg.Auth, a.store)
		u, _, err := svc.Register(cmd.Context(), auth.RegisterRequest{
			Email:    args[0],
			Password: password,
			FullName: name,
			Role:     content.Role(role),
		})
		if err != nil {
			return err
		}
		fmt.Println(theme.Section("Account created",
			theme.KV("ID", u.ID),
			theme.KV("Email", u.Email),
			theme.KV("Role", u.Role),
		))
		return nil
	},
}

func init() {
	userCreateCmd.Flags().String("password", "", "Password (at least 8 characters)")
	userCreateCmd.Flags().String("name", "", "Full name")
	userCreateCmd.Flags().String("role", string(content.RoleAdmin), "Role: admin or student")
	_ = userCreateCmd.MarkFlagRequired("password")

	userCmd.AddCommand(userCreateCmd)
}
