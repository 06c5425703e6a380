package main

import (
	"time"

	"github.com/spf13/cobra"
)

func whoamiCmd(a *app) *cobra.Command {
	var offline bool

	cmd := newCommand(a, CommandConfig{
		Use:   "whoami",
		Short: "Show the logged-in project",
		RunFunc: func(cmd *cobra.Command, args []string) error {
			if offline {
				cache, err := a.openCache()
				if err != nil {
					return err
				}
				l, err := cache.LatestLogin(a.ctx())
				if err != nil {
					return err
				}
				a.out.Block(a.renderer().Login(l, time.Now()))
				return nil
			}

			_, sess, err := a.resume()
			if err != nil {
				return err
			}
			a.out.Block(a.renderer().Session(sess))
			return nil
		},
	})

	cmd.Flags().BoolVar(&offline, "offline", false, "Show the last recorded login without contacting the server")
	return cmd
}
