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
Package rdip implements the ruby-debug-ide wire protocol: a single TCP
acceptor serving at most one client at a time, line-delimited commands in,
single-line XML fragments out.
*/
package rdip

import "strings"

/*
escapeXML strips control characters below 0x20 and escapes the five
characters that would otherwise break a double-quoted XML attribute. It
never escapes into numeric character references - the protocol's clients
only ever expect the five named entities.
*/
func escapeXML(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for _, r := range s {
		switch {
		case r < ' ':
			continue
		case r == '"':
			b.WriteString("&quot;")
		case r == '\'':
			b.WriteString("&apos;")
		case r == '<':
			b.WriteString("&lt;")
		case r == '>':
			b.WriteString("&gt;")
		case r == '&':
			b.WriteString("&amp;")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

/*
unescapeXML reverses escapeXML's five named entities. It is used only by
tests asserting the escape/unescape round trip the protocol relies on.
*/
func unescapeXML(s string) string {
	replacer := strings.NewReplacer(
		"&quot;", "\"",
		"&apos;", "'",
		"&lt;", "<",
		"&gt;", ">",
		"&amp;", "&",
	)
	return replacer.Replace(s)
}
