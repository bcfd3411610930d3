// Package users implements the users maintenance command: adding accounts and
// walking the users table page by page or in streamed batches.
package users

import (
	"context"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/chirino/messaging-service/internal/config"
	"github.com/chirino/messaging-service/internal/model"
	registrymigrate "github.com/chirino/messaging-service/internal/registry/migrate"
	registrystore "github.com/chirino/messaging-service/internal/registry/store"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	_ "github.com/chirino/messaging-service/internal/plugin/store/postgres"
	_ "github.com/chirino/messaging-service/internal/plugin/store/sqlite"
)

// Command returns the users sub-command.
func Command() *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "Manage and inspect registered users",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "db-url",
				Sources:  cli.EnvVars("MESSAGING_SERVICE_DB_URL"),
				Usage:    "Database connection URL",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "db-kind",
				Sources: cli.EnvVars("MESSAGING_SERVICE_DB_KIND"),
				Usage:   "Store backend (" + strings.Join(registrystore.Names(), "|") + ")",
				Value:   "postgres",
			},
		},
		Commands: []*cli.Command{
			addCommand(),
			listCommand(),
			streamCommand(),
		},
	}
}

func addCommand() *cli.Command {
	return &cli.Command{
		Name:  "add",
		Usage: "Register a user",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Usage: "User id (the identity provider subject)", Required: true},
			&cli.StringFlag{Name: "username", Usage: "Unique username", Required: true},
			&cli.StringFlag{Name: "email", Usage: "Email address"},
			&cli.StringFlag{Name: "first-name", Usage: "First name"},
			&cli.StringFlag{Name: "last-name", Usage: "Last name"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			store, err := openStore(ctx, cmd)
			if err != nil {
				return err
			}
			user, err := store.CreateUser(ctx, model.User{
				ID:        cmd.String("id"),
				Username:  cmd.String("username"),
				Email:     cmd.String("email"),
				FirstName: cmd.String("first-name"),
				LastName:  cmd.String("last-name"),
			})
			if err != nil {
				return err
			}
			log.Info("User added", "id", user.ID, "username", user.Username)
			return nil
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "Print users, fetching one page at a time",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "page-size", Usage: "Rows fetched per query", Value: 100},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			store, err := openStore(ctx, cmd)
			if err != nil {
				return err
			}
			t := newTable(os.Stdout)
			for page, err := range Pages(ctx, store, cmd.Int("page-size")) {
				if err != nil {
					return err
				}
				appendRows(t, page)
			}
			t.Render()
			return nil
		},
	}
}

func streamCommand() *cli.Command {
	return &cli.Command{
		Name:  "stream",
		Usage: "Print every user, reading the table in batches",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "batch-size", Usage: "Rows per batch", Value: 50},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			store, err := openStore(ctx, cmd)
			if err != nil {
				return err
			}
			t := newTable(os.Stdout)
			total := 0
			err = store.StreamUsers(ctx, cmd.Int("batch-size"), func(batch []model.User) error {
				total += len(batch)
				appendRows(t, batch)
				return nil
			})
			if err != nil {
				return err
			}
			t.Render()
			log.Info("Streamed users", "count", total)
			return nil
		},
	}
}

// Pages lazily yields pages of users ordered by id. Each page is fetched only
// when the consumer asks for it; iteration stops at the first short page.
func Pages(ctx context.Context, store registrystore.MessagingStore, pageSize int) iter.Seq2[[]model.User, error] {
	if pageSize <= 0 {
		pageSize = 100
	}
	return func(yield func([]model.User, error) bool) {
		for offset := 0; ; offset += pageSize {
			page, _, err := store.ListUsers(ctx, registrystore.ListQuery{Limit: pageSize, Offset: offset})
			if err != nil {
				yield(nil, err)
				return
			}
			if len(page) == 0 {
				return
			}
			if !yield(page, nil) || len(page) < pageSize {
				return
			}
		}
	}
}

func openStore(ctx context.Context, cmd *cli.Command) (registrystore.MessagingStore, error) {
	cfg := config.DefaultConfig()
	cfg.DBURL = cmd.String("db-url")
	cfg.DatastoreType = cmd.String("db-kind")
	ctx = config.WithContext(ctx, &cfg)

	if err := registrymigrate.RunAll(ctx); err != nil {
		return nil, err
	}
	loader, err := registrystore.Select(cfg.DatastoreType)
	if err != nil {
		return nil, err
	}
	store, err := loader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	return store, nil
}

func newTable(w io.Writer) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetHeader([]string{"ID", "Username", "Email", "First Name", "Last Name"})
	t.SetAutoWrapText(false)
	t.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	t.SetCenterSeparator("")
	t.SetColumnSeparator("")
	t.SetRowSeparator("")
	t.SetHeaderLine(false)
	t.SetBorder(false)
	t.SetTablePadding("\t")
	return t
}

func appendRows(t *tablewriter.Table, users []model.User) {
	for _, u := range users {
		t.Append([]string{u.ID, u.Username, u.Email, u.FirstName, u.LastName})
	}
}
