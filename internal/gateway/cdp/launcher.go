package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/slok/rpa/internal/model"
)

const devToolsActivePortFile = "DevToolsActivePort"

const (
	BrowserChrome   = "chrome"
	BrowserChromium = "chromium"
	BrowserBrave    = "brave"
	BrowserEdge     = "edge"
)

var execPathCandidates = map[string][]string{
	BrowserChrome: {
		"google-chrome",
		"google-chrome-stable",
		"/usr/bin/google-chrome",
		"chrome",
		"chrome.exe",
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		`C:\Program Files\Google\Chrome\Application\chrome.exe`,
		`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
	},
	BrowserChromium: {
		"chromium",
		"chromium-browser",
		"/Applications/Chromium.app/Contents/MacOS/Chromium",
	},
	BrowserBrave: {
		"brave-browser",
		"brave",
		"/Applications/Brave Browser.app/Contents/MacOS/Brave Browser",
		`C:\Program Files\BraveSoftware\Brave-Browser\Application\brave.exe`,
	},
	BrowserEdge: {
		"microsoft-edge",
		"microsoft-edge-stable",
		"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge",
		`C:\Program Files (x86)\Microsoft\Edge\Application\msedge.exe`,
	},
}

// findExecPath returns the first executable found for the browser.
func findExecPath(browser string, lookPath func(string) (string, error)) (string, error) {
	if browser == "" {
		browser = BrowserChrome
	}

	candidates, ok := execPathCandidates[strings.ToLower(browser)]
	if !ok {
		return "", fmt.Errorf("unsupported browser %q: %w", browser, model.ErrNotValid)
	}

	for _, c := range candidates {
		if p, err := lookPath(c); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("%s executable not found: %w", browser, model.ErrNotFound)
}

func launchArgs(profilePath, url string, root bool) []string {
	args := []string{
		"--user-data-dir=" + profilePath,
		"--remote-debugging-port=0",
		"--no-first-run",
		"--disable-background-networking",
	}
	if root {
		args = append(args, "--no-sandbox")
	}
	if url != "" {
		args = append(args, url)
	}

	return args
}

func startBrowser(path string, args []string) error {
	// Not bound to a context, the browser outlives the launch and the connection.
	cmd := exec.Command(path, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()

	return nil
}

func removeStalePortFile(profilePath string) error {
	err := os.Remove(filepath.Join(profilePath, devToolsActivePortFile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// waitDebuggingPort polls the DevToolsActivePort file the browser writes once the
// debugging server is listening.
func waitDebuggingPort(ctx context.Context, profilePath string, timeout, interval time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	path := filepath.Join(profilePath, devToolsActivePortFile)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if port, ok := readPortFile(path); ok {
			return port, nil
		}

		select {
		case <-ctx.Done():
			return 0, fmt.Errorf("timeout waiting for browser debugging port (%s): %w", timeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

func readPortFile(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}

	first, _, _ := strings.Cut(strings.TrimSpace(string(data)), "\n")
	port, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil || port <= 0 || port > 65535 {
		return 0, false
	}

	return port, true
}

type targetInfo struct {
	Type                 string `json:"type"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// resolvePageTarget returns the websocket URL of the first page target of the browser.
func resolvePageTarget(ctx context.Context, client *http.Client, port, retries int, interval time.Duration) (string, error) {
	url := fmt.Sprintf("http://127.0.0.1:%d/json/list", port)

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(interval):
			}
		}

		wsURL, err := fetchPageTarget(ctx, client, url)
		if err == nil {
			return wsURL, nil
		}
		lastErr = err
	}

	return "", fmt.Errorf("could not resolve page target on port %d after %d attempts: %w", port, retries, lastErr)
}

func fetchPageTarget(ctx context.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	var targets []targetInfo
	if err := json.NewDecoder(resp.Body).Decode(&targets); err != nil {
		return "", fmt.Errorf("invalid target list: %w", err)
	}

	for _, t := range targets {
		if t.Type == "page" && t.WebSocketDebuggerURL != "" {
			return t.WebSocketDebuggerURL, nil
		}
	}

	return "", fmt.Errorf("no page target found in %d targets", len(targets))
}
