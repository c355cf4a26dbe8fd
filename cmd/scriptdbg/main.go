/*
 * scriptdbg
 *
 * Copyright 2020 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the MIT
 * License, If a copy of the MIT License was not distributed with this
 * file, You can obtain one at https://opensource.org/licenses/MIT.
 */

/*
Command scriptdbg is a small demonstration binary for the embeddable
debug server in this module. It is not the debug server itself - a host
application embeds the scriptdbg package directly - it exists to give
the RDIP protocol adapter and the console UI something real to attach
to for manual protocol testing, without requiring an actual scripting
language host.
*/
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
