package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowAPIKeyGuide writes instructions for obtaining a Magic Eden API key
func ShowAPIKeyGuide(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "MAGIC EDEN API KEY")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Token listings are served by the Magic Eden API, which needs a key.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "1. Request a key at https://docs.magiceden.io")
	fmt.Fprintln(w, "2. Run 'tokenimages auth login' and paste it when prompted")
	fmt.Fprintln(w, "   or export it for a single shell:")
	fmt.Fprintf(w, "     export %s=<your key>\n", APIKeyEnv)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Keys are kept in the system keyring when one is available, otherwise")
	fmt.Fprintln(w, "in an encrypted file in the config directory.")
	fmt.Fprintln(w, "Treat the key as a secret. It is never written to logs.")
	fmt.Fprintln(w, strings.Repeat("=", 72))
}
