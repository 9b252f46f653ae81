// Command ticktick-auth walks a user through the OAuth authorization flow
// for either TickTick deployment and writes the resulting credentials to the
// dotenv file consumed by the MCP server.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	gocmd "github.com/goliatone/go-command"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-ticktick-auth/callback"
	"github.com/goliatone/go-ticktick-auth/command"
	"github.com/goliatone/go-ticktick-auth/core"
	"github.com/goliatone/go-ticktick-auth/deployment"
	"github.com/goliatone/go-ticktick-auth/store/envfile"
)

const banner = `
============================================
      TickTick MCP Server Authentication
============================================

This utility will help you authenticate with TickTick
and obtain the access tokens the MCP server needs.
`

func main() {
	os.Exit(run())
}

func run() int {
	envPath := flag.String("env", ".env", "path to the dotenv credential file")
	deploymentFlag := flag.String("deployment", "", "deployment key (international or china); prompts when empty")
	timeout := flag.Duration("timeout", 0, "override the redirect wait timeout")
	noBrowser := flag.Bool("no-browser", false, "print the authorization URL instead of opening a browser")
	refreshOnly := flag.Bool("refresh", false, "refresh the stored tokens and exit")
	flag.Parse()

	_, logger := glog.Resolve("ticktick-auth", nil, nil)
	logger = glog.Ensure(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := envfile.New(envfile.Config{Path: *envPath, Logger: logger})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	cfg := core.Config{}
	if *timeout > 0 {
		cfg.AwaitTimeout = *timeout
	}

	options := []core.Option{
		core.WithLogger(logger),
		core.WithCredentialStore(store),
		core.WithRedirectListener(callback.New(callback.Config{Logger: logger})),
	}
	if *noBrowser {
		options = append(options, core.WithURLOpener(printURLOpener(os.Stdout)))
	} else {
		options = append(options, core.WithURLOpener(core.URLOpenerFunc(openBrowser)))
	}

	flow, err := core.NewFlow(cfg, options...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	if *refreshOnly {
		return runRefresh(ctx, flow)
	}
	return runAuthorize(ctx, flow, store, *deploymentFlag, *noBrowser)
}

func runAuthorize(ctx context.Context, flow *core.Flow, store *envfile.Store, deploymentFlag string, noBrowser bool) int {
	fmt.Print(banner)
	input := bufio.NewReader(os.Stdin)

	key, err := selectDeployment(input, deploymentFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	dep, err := deployment.Resolve(key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	fmt.Printf(`
Before you begin, you will need:
1. A %s account (%s)
2. A registered API application (%s)
3. Your Client ID and Client Secret from the Developer Center

`, dep.DisplayName, dep.AccountURL, dep.DeveloperURL)

	if stale, staleErr := flow.StaleTokenCheck(ctx, key); staleErr == nil && stale {
		fmt.Println("Note: the stored tokens were issued by the other deployment.")
		fmt.Println("They are kept as-is; completing this flow will replace them.")
		fmt.Println()
	}

	fmt.Printf("Starting the OAuth authentication flow for %s...\n", dep.DisplayName)
	if noBrowser {
		fmt.Println("The authorization URL will be printed below; open it in your browser.")
	} else {
		fmt.Println("A browser window will open for you to authorize the application.")
	}
	fmt.Println("After authorization, you will be redirected back to this application.")
	fmt.Println()

	cmd := command.NewAuthorizeCommand(flow)
	collector := gocmd.NewResult[core.AuthorizeResult]()
	execCtx := gocmd.ContextWithResult(ctx, collector)

	msg := command.AuthorizeMessage{Request: core.AuthorizeRequest{
		Deployment: string(key),
		Source:     &promptCredentialSource{input: input},
	}}
	if err := msg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if err := cmd.Execute(execCtx, msg); err != nil {
		printAuthorizeFailure(err)
		return 1
	}

	result, ok := collector.Load()
	if !ok {
		fmt.Fprintln(os.Stderr, "error: authorization produced no result")
		return 1
	}

	fmt.Printf(`
Authentication successful! Tokens saved to %s.

You can now use the %s MCP server:
1. Make sure you have configured Claude for Desktop
2. Restart Claude for Desktop
3. The TickTick tools should appear in Claude

`, store.Path(), dep.DisplayName)
	if result.Tokens.ExpiresAt != nil {
		fmt.Printf("The access token expires at %s.\n", result.Tokens.ExpiresAt.Format(time.RFC3339))
	}
	return 0
}

func runRefresh(ctx context.Context, flow *core.Flow) int {
	cmd := command.NewRefreshCommand(flow)
	collector := gocmd.NewResult[core.TokenRecord]()
	execCtx := gocmd.ContextWithResult(ctx, collector)

	if err := cmd.Execute(execCtx, command.RefreshMessage{}); err != nil {
		if errors.Is(err, core.ErrRefreshNotPossible) {
			fmt.Fprintln(os.Stderr, "No refresh token stored; run a full authentication first.")
		} else {
			fmt.Fprintf(os.Stderr, "Token refresh failed: %v\n", err)
		}
		return 1
	}

	record, ok := collector.Load()
	if !ok {
		fmt.Fprintln(os.Stderr, "error: refresh produced no result")
		return 1
	}
	if record.ExpiresAt != nil {
		fmt.Printf("Tokens refreshed; the access token expires at %s.\n", record.ExpiresAt.Format(time.RFC3339))
	} else {
		fmt.Println("Tokens refreshed.")
	}
	return 0
}

func selectDeployment(input *bufio.Reader, deploymentFlag string) (deployment.Key, error) {
	if strings.TrimSpace(deploymentFlag) != "" {
		return deployment.ParseKey(deploymentFlag)
	}

	fmt.Println("Please select your account type:")
	fmt.Println("1. TickTick International (ticktick.com)")
	fmt.Println("2. TickTick China / 滴答清单 (dida365.com)")
	fmt.Println()

	for {
		fmt.Print("Please enter your choice (1/2): ")
		line, err := input.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("read selection: %w", err)
		}
		var key deployment.Key
		switch strings.TrimSpace(line) {
		case "1":
			key = deployment.KeyInternational
		case "2":
			key = deployment.KeyChina
		default:
			fmt.Println("Invalid choice, please enter 1 or 2")
			continue
		}
		dep, resolveErr := deployment.Resolve(key)
		if resolveErr != nil {
			return "", resolveErr
		}
		fmt.Printf("You selected: %s (%s)\n", dep.DisplayName, dep.AccountURL)
		return key, nil
	}
}

// promptCredentialSource collects the client id and secret interactively.
// The flow re-invokes Collect while input is empty.
type promptCredentialSource struct {
	input *bufio.Reader
}

func (s *promptCredentialSource) UseStored(_ context.Context, stored core.ClientCredentials) (bool, error) {
	fmt.Println("Existing credentials found in the credential file.")
	for {
		fmt.Print("Do you want to use these credentials? (y/n): ")
		line, err := s.input.ReadString('\n')
		if err != nil {
			return false, fmt.Errorf("read answer: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			fmt.Println("Using existing credentials.")
			return true, nil
		case "n", "no":
			return false, nil
		default:
			fmt.Println("Please answer y or n.")
		}
	}
}

func (s *promptCredentialSource) Collect(_ context.Context, retry error) (core.ClientCredentials, error) {
	if retry != nil {
		fmt.Println("This field cannot be empty. Please try again.")
	}
	clientID, err := s.prompt("Enter your Client ID: ")
	if err != nil {
		return core.ClientCredentials{}, err
	}
	clientSecret, err := s.prompt("Enter your Client Secret: ")
	if err != nil {
		return core.ClientCredentials{}, err
	}
	return core.ClientCredentials{ClientID: clientID, ClientSecret: clientSecret}, nil
}

func (s *promptCredentialSource) prompt(label string) (string, error) {
	fmt.Print(label)
	line, err := s.input.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func printAuthorizeFailure(err error) {
	fmt.Fprintf(os.Stderr, "\nAuthentication failed: %v\n", err)
	fmt.Fprintln(os.Stderr, `
Common issues:
- Incorrect Client ID or Client Secret
- Network connectivity problems
- Permission issues with the credential file

Please try again, or check the error message above.`)
}

// printURLOpener surfaces the authorization URL on w instead of launching a
// browser.
func printURLOpener(w io.Writer) core.URLOpenerFunc {
	return func(_ context.Context, url string) error {
		_, err := fmt.Fprintf(w, "\nOpen this URL in your browser to authorize:\n\n  %s\n\n", url)
		return err
	}
}

func openBrowser(ctx context.Context, url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", url)
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open browser: %w", err)
	}
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}
