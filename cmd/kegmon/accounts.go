package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nerrad567/keg-monitor-core/internal/auth"
	"github.com/nerrad567/keg-monitor-core/internal/infrastructure/logging"
)

// passwordEnv supplies the password for user create so it stays out of
// shell history.
const passwordEnv = "KEGMON_USER_PASSWORD"

type createUserOptions struct {
	email     string
	firstName string
	lastName  string
	password  string
	admin     bool
}

func newUserCmd(opts *options) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	var u createUserOptions
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user and print its API token",
		Long: `Create a user account directly in the database. Use it to bootstrap the
first administrator. The password is read from --password or $` + passwordEnv + `;
without one the account can only authenticate with its API token.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if u.password == "" {
				u.password = os.Getenv(passwordEnv)
			}
			return createUser(cmd.Context(), opts, u, cmd.OutOrStdout())
		},
	}
	createCmd.Flags().StringVar(&u.email, "email", "", "email address (required)")
	createCmd.Flags().StringVar(&u.firstName, "first-name", "", "first name")
	createCmd.Flags().StringVar(&u.lastName, "last-name", "", "last name")
	createCmd.Flags().StringVar(&u.password, "password", "", "password, at least 8 characters")
	createCmd.Flags().BoolVar(&u.admin, "admin", true, "grant administrator access")
	//nolint:errcheck // Flag is defined above
	createCmd.MarkFlagRequired("email")

	userCmd.AddCommand(createCmd)
	return userCmd
}

func createUser(ctx context.Context, opts *options, u createUserOptions, out io.Writer) error {
	const minPasswordLength = 8
	if u.password != "" && len(u.password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}

	cfg, err := opts.loadConfig(logging.Default())
	if err != nil {
		return err
	}
	log := logging.New(cfg.Logging, version)

	db, err := openDatabase(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // Process exits next

	key, err := auth.GenerateAPIKey(cfg.Security.APIKeys.Length)
	if err != nil {
		return err
	}
	user := &auth.User{
		Email:     strings.TrimSpace(u.email),
		FirstName: u.firstName,
		LastName:  u.lastName,
		Admin:     u.admin,
		APIKey:    key,
	}
	if u.password != "" {
		if user.PasswordHash, err = auth.HashPassword(u.password); err != nil {
			return fmt.Errorf("hashing password: %w", err)
		}
	}

	if err := auth.NewUserRepository(db.DB).Create(ctx, user); err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	log.Info("user created", "user_id", user.ID, "admin", user.Admin)

	fmt.Fprintf(out, "id:    %s\n", user.ID)
	fmt.Fprintf(out, "email: %s\n", user.Email)
	fmt.Fprintf(out, "token: %s\n", auth.EncodeToken(auth.KindUser, key))
	return nil
}

func newTokenCmd() *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Work with principal tokens",
	}
	tokenCmd.AddCommand(&cobra.Command{
		Use:   "encode <user|device|svc> <api-key>",
		Short: "Print the bearer token for an API key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := encodeToken(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	})
	return tokenCmd
}

func encodeToken(kind, key string) (string, error) {
	k, ok := auth.ParseKind(kind)
	if !ok {
		return "", fmt.Errorf("unknown principal kind %q", kind)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("api key is required")
	}
	return auth.EncodeToken(k, key), nil
}
