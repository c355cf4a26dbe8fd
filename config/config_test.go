/*
 * scriptdbg
 *
 * Copyright 2020 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the MIT
 * License, If a copy of the MIT License was not distributed with this
 * file, You can obtain one at https://opensource.org/licenses/MIT.
 */

package config

import (
	"testing"
)

func TestConfig(t *testing.T) {

	if res := Str(UIMode); res != "rdip" {
		t.Error("Unexpected result:", res)
		return
	}

	if res := Bool(RDIPWait); res {
		t.Error("Unexpected result:", res)
		return
	}

	if res := Int(RDIPPort); res != 1234 {
		t.Error("Unexpected result:", res)
		return
	}

	if res := Int(WorkQueueKeepAliveMS); res != 1000 {
		t.Error("Unexpected result:", res)
		return
	}
}
