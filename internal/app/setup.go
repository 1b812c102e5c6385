package app

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/Perth-Artifactory/tidyproxy/internal/config"
	"github.com/Perth-Artifactory/tidyproxy/internal/flagx"
	"github.com/Perth-Artifactory/tidyproxy/internal/timex"
)

// runSetup interactively creates a starter config.json. The token is read
// without echo; the custom-field ids come from the admin UI and are pasted
// in plain.
func (app *App) runSetup() error {
	path := flagx.JsonConfigFlags()
	if path == "" {
		path = config.DefaultPath
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists, refusing to overwrite", path)
	}

	fmt.Print("TidyHQ access token: ")
	token, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}
	if len(token) == 0 {
		return fmt.Errorf("token must not be empty")
	}

	reader := bufio.NewReader(os.Stdin)
	slackID, err := promptLine(reader, "Slack custom field id: ")
	if err != nil {
		return err
	}
	taigaID, err := promptLine(reader, "Taiga custom field id: ")
	if err != nil {
		return err
	}

	var jc config.JsonConfig
	jc.TidyHQ.Token = string(token)
	jc.TidyHQ.IDs = map[string]string{"slack": slackID, "taiga": taigaID}
	jc.CacheExpiry = &timex.Duration{Duration: 24 * time.Hour}

	data, err := json.MarshalIndent(jc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	fmt.Printf("wrote %s\n", path)
	return nil
}

func promptLine(r *bufio.Reader, label string) (string, error) {
	fmt.Print(label)
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
