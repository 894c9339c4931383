package admin

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/TimShare/TaskFlow/internal/logging"
	"github.com/TimShare/TaskFlow/internal/server/config"
	"github.com/TimShare/TaskFlow/internal/server/models"
	"github.com/spf13/cobra"
)

type options struct {
	configPath string
	dsn        string
	logLevel   string
}

// NewRootCmd builds the command tree. Output goes to the command's out
// writer, logs to stderr.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "taskflow-admin",
		Short:         "Administer TaskFlow auth accounts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file path (JSON or YAML)")
	cmd.PersistentFlags().StringVarP(&opts.dsn, "dsn", "d", "", "PostgreSQL DSN, overrides the config")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		migrateCmd(opts),
		createUserCmd(opts),
		scopesCmd(opts),
		purgeTokensCmd(opts),
	)
	return cmd
}

// Execute runs the root command with os.Args.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func (o *options) load() (*config.Config, error) {
	var args []string
	if o.configPath != "" {
		args = append(args, "-c", o.configPath)
	}
	if o.dsn != "" {
		args = append(args, "-d", o.dsn)
	}
	return config.LoadConfig(args)
}

// withBackend loads the config, connects and runs fn.
func (o *options) withBackend(cmd *cobra.Command, fn func(ctx context.Context, b *Backend, out io.Writer) error) error {
	cfg, err := o.load()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	l := logging.NewJSON(os.Stderr, o.logLevel)

	b, err := connect(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer func() { _ = b.Close() }()

	return fn(ctx, b, cmd.OutOrStdout())
}

func migrateCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.withBackend(cmd, func(ctx context.Context, b *Backend, out io.Writer) error {
				v, err := b.Version(ctx)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(out, "schema at version %d\n", v)
				return err
			})
		},
	}
}

func createUserCmd(o *options) *cobra.Command {
	var superuser bool

	cmd := &cobra.Command{
		Use:   "create-user <username> <email>",
		Short: "Create an account, prompting for its password",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withBackend(cmd, func(ctx context.Context, b *Backend, out io.Writer) error {
				password, err := getPassword(cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				hash, err := b.Hasher.Hash(password)
				if err != nil {
					return err
				}

				u := models.NewUser(args[0], args[1], hash)
				u.IsSuperuser = superuser

				created, err := b.Users.CreateUser(ctx, u)
				if err != nil {
					return fmt.Errorf("create user: %w", err)
				}
				_, err = fmt.Fprintf(out, "created user %s (%s)\n", created.ID, created.Email)
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&superuser, "superuser", false, "grant every scope")
	return cmd
}

func scopesCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scopes",
		Short: "Inspect and change a user's scopes",
	}

	type op func(Directory, context.Context, string, []string) ([]string, error)

	sub := func(use, short string, args cobra.PositionalArgs, apply op) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  args,
			RunE: func(cmd *cobra.Command, args []string) error {
				return o.withBackend(cmd, func(ctx context.Context, b *Backend, out io.Writer) error {
					u, err := b.Users.GetUserByEmail(ctx, args[0])
					if err != nil {
						return fmt.Errorf("lookup %s: %w", args[0], err)
					}
					scopes, err := apply(b.Users, ctx, u.ID, args[1:])
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(out, strings.Join(scopes, " "))
					return err
				})
			},
		}
	}

	cmd.AddCommand(
		sub("get <email>", "Print the user's scopes", cobra.ExactArgs(1),
			func(d Directory, ctx context.Context, id string, _ []string) ([]string, error) { return d.GetScopes(ctx, id) }),
		sub("add <email> <scope>...", "Grant scopes", cobra.MinimumNArgs(2), Directory.AddScopes),
		sub("remove <email> <scope>...", "Revoke scopes", cobra.MinimumNArgs(2), Directory.RemoveScopes),
		sub("set <email> [scope]...", "Replace all scopes", cobra.MinimumNArgs(1), Directory.UpdateScopes),
	)
	return cmd
}

func purgeTokensCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "purge-tokens",
		Short: "Delete expired refresh-token records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.withBackend(cmd, func(ctx context.Context, b *Backend, out io.Writer) error {
				n, err := b.Tokens.DeleteExpired(ctx, time.Now().UTC())
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(out, "deleted %d expired refresh tokens\n", n)
				return err
			})
		},
	}
}
