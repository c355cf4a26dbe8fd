/*
 * scriptdbg
 *
 * Copyright 2020 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the MIT
 * License, If a copy of the MIT License was not distributed with this
 * file, You can obtain one at https://opensource.org/licenses/MIT.
 */

package rdip

import "testing"

func TestEscapeXMLStripsControlCharsAndEscapesFive(t *testing.T) {
	in := "a\x01b \"q\" 'a' <x> & \x1fz"
	got := escapeXML(in)
	want := "ab &quot;q&quot; &apos;a&apos; &lt;x&gt; &amp; z"
	if got != want {
		t.Fatalf("escapeXML(%q) = %q, want %q", in, got, want)
	}
}

func TestEscapeUnescapeRoundTrip(t *testing.T) {
	cases := []string{
		`plain text`,
		`x > 1 && y < 2`,
		`name="quoted"`,
		`it's "both" < > &`,
	}
	for _, c := range cases {
		got := unescapeXML(escapeXML(c))
		if got != c {
			t.Fatalf("round trip failed for %q: got %q", c, got)
		}
	}
}
