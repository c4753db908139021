// Command useradd seeds credential record into the auth database.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/pflag"

	"github.com/nkiryanov/authcore/internal/db"
	"github.com/nkiryanov/authcore/internal/repository"
	"github.com/nkiryanov/authcore/internal/repository/postgres"
	"github.com/nkiryanov/authcore/internal/service/credentials"
)

type options struct {
	DatabaseDSN string
	Email       string
	Phone       string
	Password    string
	Inactive    bool
	Unverified  bool
}

func parseFlags(args []string, getenv func(string) string) (options, error) {
	opts := options{DatabaseDSN: getenv("DATABASE_URI")}

	fs := pflag.NewFlagSet("useradd", pflag.ContinueOnError)
	fs.StringVarP(&opts.DatabaseDSN, "database", "d", opts.DatabaseDSN, "Database connection string")
	fs.StringVar(&opts.Email, "email", "", "User email")
	fs.StringVar(&opts.Phone, "phone", "", "User phone")
	fs.StringVar(&opts.Password, "password", "", "User password")
	fs.BoolVar(&opts.Inactive, "inactive", false, "Create disabled account")
	fs.BoolVar(&opts.Unverified, "unverified", false, "Create account with unverified contacts")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	switch {
	case opts.DatabaseDSN == "":
		return opts, errors.New("database is required")
	case opts.Email == "" && opts.Phone == "":
		return opts, errors.New("email or phone is required")
	case opts.Password == "":
		return opts, errors.New("password is required")
	}
	return opts, nil
}

// Create user with the validator so identifiers are normalized and password hashed the same way login expects
func createUser(ctx context.Context, users repository.UserRepo, opts options, out io.Writer) error {
	validator, err := credentials.NewValidator(users, credentials.DefaultOptions())
	if err != nil {
		return err
	}

	user, err := validator.CreateUser(ctx, credentials.CreateUserParams{
		Email:      opts.Email,
		Phone:      opts.Phone,
		Password:   opts.Password,
		IsActive:   !opts.Inactive,
		IsVerified: !opts.Unverified,
	})
	if err != nil {
		return fmt.Errorf("error while creating user. Err: %w", err)
	}

	_, err = fmt.Fprintln(out, user.ID)
	return err
}

func run(ctx context.Context, args []string, getenv func(string) string, out io.Writer) error {
	opts, err := parseFlags(args, getenv)
	if err != nil {
		return err
	}

	pool, err := db.ConnectAndMigrate(ctx, opts.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("error while connecting to db. Err: %w", err)
	}
	defer pool.Close()

	return createUser(ctx, postgres.NewStorage(pool).User(), opts, out)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Getenv, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "useradd: %v\n", err)
		os.Exit(1)
	}
}
