package storage

import "strings"

// forbidden are the characters Windows or POSIX reject in a path component
const forbidden = `\/<>:"|?*`

// SafeName removes every forbidden character and keeps the rest, Unicode
// included. SafeName(SafeName(s)) == SafeName(s).
func SafeName(name string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(forbidden, r) {
			return -1
		}
		return r
	}, name)
}
