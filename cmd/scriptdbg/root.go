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
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

/*
RootCmd is the base command when scriptdbg is called without a
subcommand.
*/
var RootCmd = &cobra.Command{
	Use:   "scriptdbg",
	Short: "scriptdbg demonstrates the embeddable ruby-debug-ide debug server",
}

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.scriptdbg.yaml)")
}

/*
initConfig reads a config file and environment variables if set, so a
user can pin a default port or settings file without repeating flags.
*/
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	viper.SetConfigName(".scriptdbg")
	viper.AddConfigPath("$HOME")
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	viper.ReadInConfig()
}
