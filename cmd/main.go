/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	conciliacion "github.com/Dussand/conciliacion-Gmoney"
	"github.com/Dussand/conciliacion-Gmoney/config"
	"github.com/Dussand/conciliacion-Gmoney/database"
	"github.com/Dussand/conciliacion-Gmoney/internal/notification"
)

// CLI represents the command line application, encapsulating the root Cobra command.
type CLI struct {
	cmd *cobra.Command
}

// conciliacionInstance holds the loaded configuration and, for the commands that need
// storage, the Conciliacion built from it.
type conciliacionInstance struct {
	c          *conciliacion.Conciliacion
	cnf        *config.Configuration
	configFile string
}

// recoverPanic handles any panics during program execution and logs the error using Logrus.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration before any command runs.
func preRun(app *conciliacionInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig(app.configFile)
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}
		app.cnf = cnf
		return nil
	}
}

// setup connects to Postgres and Redis. Commands that only read files skip it.
func (app *conciliacionInstance) setup() {
	c, err := setupConciliacion(app.cnf)
	if err != nil {
		notification.NotifyError(err)
		log.Fatal(err)
	}
	app.c = c
}

// setupConciliacion creates a Conciliacion backed by the configured data source.
func setupConciliacion(cfg *config.Configuration) (*conciliacion.Conciliacion, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	c, err := conciliacion.NewConciliacion(db)
	if err != nil {
		return nil, fmt.Errorf("error creating conciliacion: %v", err)
	}
	return c, nil
}

// NewCLI creates the command line interface with the server, workers, migrate,
// reconcile and config subcommands.
func NewCLI() *CLI {
	app := &conciliacionInstance{}

	var rootCmd = &cobra.Command{
		Use:   "conciliacion",
		Short: "Reconcile Metabase operations against GMoney movements",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&app.configFile, "config", "./conciliacion.json", "Configuration file")
	rootCmd.PersistentPreRunE = preRun(app)

	rootCmd.AddCommand(serverCommands(app))
	rootCmd.AddCommand(workerCommands(app))
	rootCmd.AddCommand(migrateCommands(app))
	rootCmd.AddCommand(reconcileCommands(app))
	rootCmd.AddCommand(configCommands(app))

	return &CLI{cmd: rootCmd}
}

func (w CLI) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
