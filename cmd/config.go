package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/personaloom/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set personaloom configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := currentConfig()
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "host: %s\n", c.Host)
		fmt.Fprintf(w, "port: %d\n", c.Port)
		fmt.Fprintf(w, "max_upload_mb: %d\n", c.MaxUploadMB)
		fmt.Fprintf(w, "cors_allowed_origins: %s\n", strings.Join(c.CORSAllowedOrigins, ","))
		fmt.Fprintf(w, "shutdown_timeout_sec: %d\n", c.ShutdownTimeoutSec)
		fmt.Fprintf(w, "max_clusters: %d\n", c.MaxClusters)
		fmt.Fprintf(w, "random_seed: %d\n", c.RandomSeed)
		fmt.Fprintf(w, "n_init: %d\n", c.NInit)
		fmt.Fprintf(w, "max_iter: %d\n", c.MaxIter)
		fmt.Fprintf(w, "tolerance: %g\n", c.Tolerance)
		fmt.Fprintf(w, "include_categorical: %t\n", c.IncludeCategorical)
		if c.SheetName != "" {
			fmt.Fprintf(w, "sheet_name: %s\n", c.SheetName)
		}
		fmt.Fprintf(w, "sheet_index: %d\n", c.SheetIndex)
		fmt.Fprintf(w, "log_level: %s\n", c.LogLevel)
		fmt.Fprintf(w, "log_format: %s\n", c.LogFormat)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		c := *currentConfig()
		if err := setKey(&c, key, val); err != nil {
			return err
		}
		if err := c.Validate(); err != nil {
			return err
		}
		if err := cfgpkg.Save(&c, cfgFile); err != nil {
			return err
		}
		cfg = &c
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func setKey(c *cfgpkg.Global, key, val string) error {
	atoi := func() (int, error) {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("invalid int for %s: %w", key, err)
		}
		return i, nil
	}
	var err error
	switch key {
	case "host":
		c.Host = val
	case "port":
		c.Port, err = atoi()
	case "max_upload_mb":
		c.MaxUploadMB, err = atoi()
	case "cors_allowed_origins":
		var origins []string
		for _, o := range strings.Split(val, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.CORSAllowedOrigins = origins
	case "shutdown_timeout_sec":
		c.ShutdownTimeoutSec, err = atoi()
	case "max_clusters":
		c.MaxClusters, err = atoi()
	case "random_seed":
		c.RandomSeed, err = strconv.ParseInt(val, 10, 64)
		if err != nil {
			err = fmt.Errorf("invalid int for random_seed: %w", err)
		}
	case "n_init":
		c.NInit, err = atoi()
	case "max_iter":
		c.MaxIter, err = atoi()
	case "tolerance":
		c.Tolerance, err = strconv.ParseFloat(val, 64)
		if err != nil {
			err = fmt.Errorf("invalid float for tolerance: %w", err)
		}
	case "include_categorical":
		c.IncludeCategorical, err = strconv.ParseBool(val)
		if err != nil {
			err = fmt.Errorf("invalid bool for include_categorical: %w", err)
		}
	case "sheet_name":
		c.SheetName = val
	case "sheet_index":
		c.SheetIndex, err = atoi()
	case "log_level":
		c.LogLevel = strings.ToLower(val)
	case "log_format":
		c.LogFormat = strings.ToLower(val)
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return err
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
