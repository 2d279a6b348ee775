package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage user accounts",
}

var usersCreateCmd = &cobra.Command{
	Use:   "create <username>",
	Short: "Create a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersCreate,
}

var usersTokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Issue a bearer token for a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersToken,
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete <user-id>",
	Short: "Delete a user",
	Long: `Deletes a user. Shops owned by the user are deleted with their products
and orders. Orders the user placed in other shops are kept without a client
and can no longer be changed by anyone. Open sessions are revoked.`,
	Args: cobra.ExactArgs(1),
	RunE: runUsersDelete,
}

var issueToken bool

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(usersCreateCmd, usersTokenCmd, usersDeleteCmd)

	usersCreateCmd.Flags().BoolVar(&issueToken, "token", false, "Also issue a bearer token for the new user")
}

func parseUserID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", arg)
	}
	return id, nil
}

func runUsersCreate(cmd *cobra.Command, args []string) error {
	users, cleanup, err := userDeps()
	if err != nil {
		return err
	}
	defer cleanup()

	user, err := users.Create(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created user %d (%s)\n", user.ID, user.Username)

	if issueToken {
		token, err := users.IssueToken(cmd.Context(), user.ID)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
	}
	return nil
}

func runUsersToken(cmd *cobra.Command, args []string) error {
	id, err := parseUserID(args[0])
	if err != nil {
		return err
	}
	users, cleanup, err := userDeps()
	if err != nil {
		return err
	}
	defer cleanup()

	token, err := users.IssueToken(cmd.Context(), id)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

func runUsersDelete(cmd *cobra.Command, args []string) error {
	id, err := parseUserID(args[0])
	if err != nil {
		return err
	}
	users, cleanup, err := userDeps()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := users.Delete(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted user %d\n", id)
	return nil
}
