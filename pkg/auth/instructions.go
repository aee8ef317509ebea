package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowTokenExtractionGuide prints how to copy a user token from the web client
func ShowTokenExtractionGuide(w io.Writer) {
	rule := strings.Repeat("=", 72)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "DISCORD TOKEN GUIDE")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "dscraper searches with your own account token.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "1. Open https://discord.com/app in a browser and log in")
	fmt.Fprintln(w, "2. Open developer tools (F12, or Cmd+Option+I on macOS)")
	fmt.Fprintln(w, "3. Switch to the Network tab and reload the page")
	fmt.Fprintln(w, "4. Filter for \"api\" and click any request to discord.com/api")
	fmt.Fprintln(w, "5. Under Request Headers copy the value of \"authorization\"")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The token grants full access to your account.")
	fmt.Fprintln(w, "Never share it. It changes when you change your password or log out.")
	fmt.Fprintln(w, rule)
}

// ShowQuickGuide prints a one-line reminder
func ShowQuickGuide(w io.Writer) {
	fmt.Fprintln(w, "F12 > Network > any discord.com/api request > Request Headers > authorization")
}
