package main

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"puzzlemania/internal/config"
)

// settableKeys maps each key accepted by 'config set' to its value parser.
var settableKeys = map[string]func(string) (any, error){
	config.KeyManifestURL:     parseManifestURL,
	config.KeyFetchTimeout:    parseTimeout,
	config.KeyDownloadTimeout: parseTimeout,
	config.KeyDownloadDir:     parseString,
	config.KeyTargetPath:      parseString,
	config.KeyPromptMode:      parsePromptMode,
	config.KeyOutputFormat:    parseOutputFormat,
	config.KeyJournalPath:     parseString,
	config.KeyJournalEnabled:  parseBool,
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and change settings",
	}

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Save a setting to the project or user config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			key := strings.TrimSpace(args[0])
			parse, ok := settableKeys[key]
			if !ok {
				return configError(fmt.Sprintf("unknown key %q (known keys: %s)", key, strings.Join(knownKeys(), ", ")))
			}
			value, err := parse(args[1])
			if err != nil {
				return configError(fmt.Sprintf("%s: %v", key, err))
			}
			if err := config.Save(key, value); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(a.out, "%s = %v\n", key, value)
			return nil
		},
	}

	get := &cobra.Command{
		Use:   "get <key>",
		Short: "Print the effective value of a setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			key := strings.TrimSpace(args[0])
			if _, ok := settableKeys[key]; !ok {
				return configError(fmt.Sprintf("unknown key %q", key))
			}
			_, _ = fmt.Fprintln(a.out, config.GetString(key))
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Print every setting with its effective value",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			for _, key := range knownKeys() {
				_, _ = fmt.Fprintf(a.out, "%s = %s\n", key, config.GetString(key))
			}
			return nil
		},
	}

	path := &cobra.Command{
		Use:   "path",
		Short: "Print the config file 'config set' writes to",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			p, err := config.WritablePath()
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(a.out, p)
			return nil
		},
	}

	cmd.AddCommand(set, get, list, path)
	return cmd
}

func knownKeys() []string {
	keys := make([]string, 0, len(settableKeys))
	for k := range settableKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func parseString(raw string) (any, error) {
	return strings.TrimSpace(raw), nil
}

func parseManifestURL(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("must be an http or https URL")
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing host")
	}
	return raw, nil
}

func parseTimeout(raw string) (any, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if d <= 0 {
		return nil, fmt.Errorf("must be positive")
	}
	return d.String(), nil
}

func parsePromptMode(raw string) (any, error) {
	mode := strings.ToLower(strings.TrimSpace(raw))
	switch mode {
	case config.PromptModeAuto, config.PromptModeTUI, config.PromptModePlain:
		return mode, nil
	}
	return nil, fmt.Errorf("must be one of auto, tui, plain")
}

func parseOutputFormat(raw string) (any, error) {
	format := strings.ToLower(strings.TrimSpace(raw))
	switch format {
	case "rich", "dark", "light", "plain":
		return format, nil
	}
	return nil, fmt.Errorf("must be one of rich, dark, light, plain")
}

func parseBool(raw string) (any, error) {
	return strconv.ParseBool(strings.TrimSpace(raw))
}
