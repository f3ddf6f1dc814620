package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/config"
	"github.com/adamswbrown/propresenterlyricexport-sub001/internal/store"
)

// Exit codes: 0 success, 1 user error (bad usage, unknown or invalid
// email), 2 internal error (config or store failure).
const (
	exitOK       = 0
	exitUser     = 1
	exitInternal = 2
)

const usersUsage = `Manage the allow-list of users.

Usage:
  daemon users add <email> [--admin]
  daemon users remove <email>
  daemon users list
`

// runUsersCLI is the offline allow-list editor. It operates directly on
// users.json, so it works whether or not the server is running.
func runUsersCLI(args []string) int {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return exitInternal
	}
	paths := store.NewPaths(cfg.DataDir)
	if err := paths.Ensure(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return exitInternal
	}
	return usersCLI(args, store.NewUserStore(paths.UsersFile), os.Stdout)
}

func usersCLI(args []string, users *store.UserStore, out io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usersUsage)
		return exitUser
	}

	switch args[0] {
	case "add":
		// The --admin flag is accepted before or after the email.
		var email string
		admin := false
		bad := false
		for _, arg := range args[1:] {
			switch {
			case arg == "--admin" || arg == "-admin":
				admin = true
			case strings.HasPrefix(arg, "-") || email != "":
				bad = true
			default:
				email = arg
			}
		}
		if bad || email == "" {
			fmt.Fprintln(os.Stderr, "usage: daemon users add <email> [--admin]")
			return exitUser
		}
		if err := users.Add(email, admin); err != nil {
			return cliError(err)
		}
		role := "user"
		if admin {
			role = "admin"
		}
		fmt.Fprintf(out, "added %s (%s)\n", store.CanonicalEmail(email), role)
		return exitOK

	case "remove":
		if len(args) != 2 {
			fmt.Fprintln(os.Stderr, "usage: daemon users remove <email>")
			return exitUser
		}
		if err := users.Remove(args[1]); err != nil {
			return cliError(err)
		}
		fmt.Fprintf(out, "removed %s\n", store.CanonicalEmail(args[1]))
		return exitOK

	case "list":
		all := users.ListAll()
		if len(all) == 0 {
			fmt.Fprintln(out, "no users in the allow-list")
			return exitOK
		}
		for _, u := range all {
			role := "user"
			if u.Admin {
				role = "admin"
			}
			last := "never"
			if u.LastLogin != nil {
				last = u.LastLogin.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(out, "%-40s %-6s last login: %s\n", u.Email, role, last)
		}
		return exitOK

	default:
		fmt.Fprint(os.Stderr, usersUsage)
		return exitUser
	}
}

func cliError(err error) int {
	fmt.Fprintln(os.Stderr, "error:", err)
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidEmail) {
		return exitUser
	}
	return exitInternal
}
