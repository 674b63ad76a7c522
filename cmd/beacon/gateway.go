package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

func newGatewayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Configure the SMS gateway",
	}

	cmd.AddCommand(newGatewaySetCmd())
	return cmd
}

func newGatewaySetCmd() *cobra.Command {
	var (
		configPath string
		accountSID string
		fromNumber string
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store SMS gateway credentials in the config file",
		Long:  "Prompts for the gateway auth token without echoing it, then writes the credentials into the config file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGatewaySet(cmd, configPath, accountSID, fromNumber)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "beacon.yaml", "path to Beacon config file")
	cmd.Flags().StringVar(&accountSID, "account-sid", "", "gateway account SID")
	cmd.Flags().StringVar(&fromNumber, "from", "", "sender phone number in E.164 form")
	return cmd
}

func runGatewaySet(cmd *cobra.Command, configPath, accountSID, fromNumber string) error {
	out := cmd.OutOrStdout()

	if accountSID == "" {
		accountSID = promptLine(cmd, "Account SID: ")
	}
	if fromNumber == "" {
		fromNumber = promptLine(cmd, "From number: ")
	}
	if accountSID == "" || fromNumber == "" {
		return fmt.Errorf("account SID and from number are required")
	}

	token, err := promptToken(cmd)
	if err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("auth token is required")
	}

	if err := writeGatewayConfig(configPath, accountSID, token, fromNumber); err != nil {
		return err
	}
	fmt.Fprintf(out, "SMS gateway credentials written to %s\n", configPath)
	fmt.Fprintln(out, "Restart the daemon to pick them up.")
	return nil
}

func promptLine(cmd *cobra.Command, prompt string) string {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	scanner := bufio.NewScanner(cmd.InOrStdin())
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text())
	}
	return ""
}

// promptToken reads the auth token without echo when stdin is a terminal,
// falling back to a plain read when it is not (tests, pipes).
func promptToken(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), "Auth token: ")

	fd := int(os.Stdin.Fd())
	if cmd.InOrStdin() == os.Stdin && term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("read auth token: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()), nil
	}
	return "", nil
}

// writeGatewayConfig updates only the channels.sms block of the YAML file,
// preserving everything else the user has configured.
func writeGatewayConfig(path, accountSID, token, fromNumber string) error {
	doc := map[string]any{}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	channels, _ := doc["channels"].(map[string]any)
	if channels == nil {
		channels = map[string]any{}
	}
	sms, _ := channels["sms"].(map[string]any)
	if sms == nil {
		sms = map[string]any{}
	}
	sms["account_sid"] = accountSID
	sms["auth_token"] = token
	sms["from_number"] = fromNumber
	channels["sms"] = sms
	doc["channels"] = channels
	if _, ok := doc["device"]; !ok {
		doc["device"] = "beacon"
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
