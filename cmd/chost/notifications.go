package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joss/chost/pkg/cohost"
)

func notificationsCmd(a *app) *cobra.Command {
	var (
		offset int
		limit  int
		cached bool
	)

	cmd := newCommand(a, CommandConfig{
		Use:   "notifications",
		Short: "List notifications",
		Example: `  chost notifications --limit 20
  chost notifications --offset 20 --limit 20
  chost notifications --cached`,
		RunFunc: func(cmd *cobra.Command, args []string) error {
			if cached {
				return a.cachedNotifications(offset, limit)
			}

			c, sess, err := a.resume()
			if err != nil {
				return err
			}
			list, err := c.ListNotifications(a.ctx(), offset, limit)
			if err != nil {
				return err
			}

			if cache, cerr := a.openCache(); cerr != nil {
				a.log.Warn("cache_open", nil, cerr)
			} else if cerr := cache.ReplaceNotifications(a.ctx(), sess.ProjectID, offset, list); cerr != nil {
				a.log.Warn("cache_notifications", nil, cerr)
			}

			a.out.Block(a.renderer().Notifications(list, offset))
			return nil
		},
	})

	cmd.Flags().IntVar(&offset, "offset", 0, "Number of notifications to skip")
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of notifications to fetch")
	cmd.Flags().BoolVar(&cached, "cached", false, "Read from the local cache instead of the server")
	return cmd
}

func (a *app) cachedNotifications(offset, limit int) error {
	if offset < 0 || limit <= 0 {
		return &cohost.Error{Op: "notifications", Kind: cohost.ErrInvalidArgument,
			Err: fmt.Errorf("offset %d and limit %d out of range", offset, limit)}
	}
	cache, err := a.openCache()
	if err != nil {
		return err
	}
	l, err := cache.LatestLogin(a.ctx())
	if err != nil {
		return err
	}
	list, err := cache.CachedNotifications(a.ctx(), l.ProjectID, offset, limit)
	if err != nil {
		return err
	}
	a.out.Block(a.renderer().Cached(list, time.Now()))
	return nil
}
