package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/joss/chost/pkg/cohost"
)

var errNoEmail = errors.New("no email given; pass --email or set CHOST_EMAIL")

func loginCmd(a *app) *cobra.Command {
	var (
		email         string
		cookieFile    string
		sessionID     string
		passwordStdin bool
	)

	cmd := newCommand(a, CommandConfig{
		Use:   "login",
		Short: "Log in and save the session cookie",
		Long: `Log in with email and password, import an existing cookie file,
or adopt a known connect.sid value. The session is written to the
configured cookie file for later commands.`,
		Example: `  chost login --email you@example.com
  echo "$PASS" | chost login --email you@example.com --password-stdin
  chost login --cookie-file ~/Downloads/cookies.txt`,
		RunFunc: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			ctx := a.ctx()

			var sess cohost.Session
			switch {
			case sessionID != "":
				sess, err = c.LoginWithSessionID(ctx, sessionID)
			case cookieFile != "":
				sess, err = c.LoginWithCookieFile(ctx, cookieFile)
			default:
				if email == "" {
					email = a.cfg.Email
				}
				if email == "" {
					return &cohost.Error{Op: "login", Kind: cohost.ErrInvalidArgument, Err: errNoEmail}
				}
				password, perr := readPassword(a.in, cmd.ErrOrStderr(), passwordStdin)
				if perr != nil {
					return perr
				}
				sess, err = c.LoginWithEmailPass(ctx, email, password)
			}
			if err != nil {
				return err
			}

			a.recordLogin(sess)
			a.out.Block(a.renderer().Session(sess))
			return nil
		},
	})

	cmd.Flags().StringVar(&email, "email", "", "Account email (default from config)")
	cmd.Flags().StringVar(&cookieFile, "cookie-file", "", "Import a Netscape cookie file instead of using a password")
	cmd.Flags().StringVar(&sessionID, "session-id", "", "Use an existing connect.sid value")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	cmd.MarkFlagsMutuallyExclusive("email", "cookie-file", "session-id")
	return cmd
}

// recordLogin stores the login in the cache. Cache failures only warn.
func (a *app) recordLogin(sess cohost.Session) {
	cache, err := a.openCache()
	if err == nil {
		_, err = cache.RecordLogin(a.ctx(), sess)
	}
	if err != nil {
		a.log.Warn("cache_login", nil, err)
	}
}

func logoutCmd(a *app) *cobra.Command {
	return newCommand(a, CommandConfig{
		Use:   "logout",
		Short: "Forget the saved session cookie",
		Long:  "Delete the local cookie file. The server-side session is not revoked.",
		RunFunc: func(cmd *cobra.Command, args []string) error {
			removed, err := removeIfExists(a.cfg.CookieFile)
			if err != nil {
				return err
			}
			if removed {
				a.out.Println("Removed %s", a.cfg.CookieFile)
			} else {
				a.out.Println("Not logged in")
			}
			return nil
		},
	})
}
