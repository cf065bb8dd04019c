// Copyright (C) 2025 Josh Simonot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"roboburn/internal/client"
	"roboburn/internal/config"
	"roboburn/internal/prefs"
	"roboburn/pkg/eventbus"
	"roboburn/pkg/logger"
)

// app is the state shared by all subcommands, built once flags are parsed.
type app struct {
	rootDir  string
	endpoint string

	conf  *config.Config
	prefs *prefs.Prefs
	log   *logger.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	defaultRoot := os.Getenv("PROJECT_ROOT")
	if defaultRoot == "" {
		defaultRoot = "."
	}

	cmd := &cobra.Command{
		Use:          "roboburn",
		Short:        "Monitor and control a roboburn burner controller",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Close()
		},
	}
	cmd.PersistentFlags().StringVar(&a.rootDir, "root", defaultRoot, "project root holding var/config and var/logs")
	cmd.PersistentFlags().StringVar(&a.endpoint, "endpoint", "", "controller base URL (overrides the saved preference)")

	cmd.AddCommand(
		newServeCmd(a),
		newWatchCmd(a),
		newStatusCmd(a),
		newSetCmd(a),
		newDiscoverCmd(a),
	)
	return cmd
}

func (a *app) init() error {
	// <root>/.env can set DEBUG for the logger. PROJECT_ROOT only works from
	// the real environment, since it picks the root before this runs.
	if err := godotenv.Load(filepath.Join(a.rootDir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	if err := logger.Init(a.path("var/logs/roboburn.log")); err != nil {
		return err
	}
	a.log = logger.New("Main")

	conf, err := config.Load(a.path("var/config/roboburn.yml"))
	if err != nil {
		return err
	}
	// use conf to pass eventbus to whoever needs it
	conf.EventBus = eventbus.New()
	a.conf = conf

	prefsPath := conf.PrefsFile
	if !filepath.IsAbs(prefsPath) {
		prefsPath = a.path(prefsPath)
	}
	p, err := prefs.Open(prefsPath)
	if err != nil {
		return err
	}
	a.prefs = p
	return nil
}

func (a *app) path(rel string) string {
	return filepath.Join(a.rootDir, rel)
}

// target is the endpoint in effect: the flag, else the saved preference.
func (a *app) target() string {
	if a.endpoint != "" {
		return a.endpoint
	}
	return a.prefs.Endpoint()
}

func (a *app) newClient() (*client.Client, error) {
	c, err := client.New(a.target(), client.WithTimeouts(a.conf.ConnectTimeout(), a.conf.ReadTimeout()))
	if err != nil {
		return nil, err
	}
	a.log.Debug("controller at %s", c.Endpoint())
	return c, nil
}
