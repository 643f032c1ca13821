package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
)

var flagUserName string

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage API users",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user and print its bearer token",
	RunE:  runUserCreate,
}

var userRotateCmd = &cobra.Command{
	Use:   "rotate-token <user-id>",
	Short: "Replace a user's bearer token and print the new one",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserRotate,
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List user IDs",
	RunE:  runUserList,
}

func init() {
	userCreateCmd.Flags().StringVar(&flagUserName, "name", "", "Display name")
	_ = userCreateCmd.MarkFlagRequired("name")
	userCmd.AddCommand(userCreateCmd, userRotateCmd, userListCmd)
	rootCmd.AddCommand(userCmd)
}

// newToken returns 32 random bytes, hex encoded. Only its hash is stored.
func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func runUserCreate(cmd *cobra.Command, _ []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	token, err := newToken()
	if err != nil {
		return err
	}
	u, err := e.repo.CreateUser(cmd.Context(), flagUserName, token)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "user:  %s\ntoken: %s\n", u.ID, token)
	return nil
}

func runUserRotate(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	token, err := newToken()
	if err != nil {
		return err
	}
	if err := e.repo.RotateToken(cmd.Context(), args[0], token); err != nil {
		return fmt.Errorf("user %s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "token: %s\n", token)
	return nil
}

func runUserList(cmd *cobra.Command, _ []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	ids, err := e.repo.ListUserIDs(cmd.Context())
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Fprintln(cmd.OutOrStdout(), id)
	}
	return nil
}
