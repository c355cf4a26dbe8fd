/*
 * scriptdbg
 *
 * Copyright 2020 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the MIT
 * License, If a copy of the MIT License was not distributed with this
 * file, You can obtain one at https://opensource.org/licenses/MIT.
 */

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"devt.de/krotik/scriptdbg"
	"devt.de/krotik/scriptdbg/config"
	"devt.de/krotik/scriptdbg/runtime/reftest"
)

var (
	gClientFlag       string
	gPortFlag         int
	gWaitFlag         bool
	gSettingsFileFlag string
)

/*
serveCmd attaches the debug server to a canned reference runtime and
serves it over RDIP (or the interactive console) until interrupted. It
exists to exercise the protocol adapter and the engine end to end
without a real scripting language host.
*/
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the debug server against a canned reference script",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := viper.GetString("client")
		port := viper.GetInt("port")
		wait := viper.GetBool("wait")
		settingsFile := viper.GetString("settings-file")

		config.Config[config.RDIPPort] = port
		config.Config[config.RDIPWait] = wait
		config.Config[config.SettingsFile] = settingsFile

		rt := reftest.NewRuntime(reftest.DefaultScript)
		scriptdbg.Bind(&scriptdbg.Host{
			Tracer: rt,
			Walker: rt,
			Bridge: rt,
			Source: rt,
		})

		configString := client
		if client == "rdip" {
			configString = fmt.Sprintf("rdip port=%d", port)
			if wait {
				configString += " wait"
			}
		}

		shutdown, err := scriptdbg.InitDebugger(configString)
		if err != nil {
			return fmt.Errorf("could not start debug session: %w", err)
		}
		defer shutdown()

		color.Green("scriptdbg: serving %q over %s, press Ctrl-C to stop", reftest.DefaultScript.File, client)
		go rt.Run()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&gClientFlag, "client", "rdip", "debug client: \"rdip\" or \"console\"")
	serveCmd.Flags().IntVar(&gPortFlag, "port", config.DefaultConfig[config.RDIPPort].(int), "RDIP listening port")
	serveCmd.Flags().BoolVar(&gWaitFlag, "wait", false, "block startup until an RDIP client connects")
	serveCmd.Flags().StringVar(&gSettingsFileFlag, "settings-file", "", "path to a breakpoint settings file")

	viper.BindPFlag("client", serveCmd.Flags().Lookup("client"))
	viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("wait", serveCmd.Flags().Lookup("wait"))
	viper.BindPFlag("settings-file", serveCmd.Flags().Lookup("settings-file"))

	RootCmd.AddCommand(serveCmd)
}
