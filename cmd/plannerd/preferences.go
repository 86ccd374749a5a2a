package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"plannerd/internal/planning"
	"plannerd/internal/store"
)

var (
	prefsUser string
	prefsFile string
)

var preferencesCmd = &cobra.Command{
	Use:   "preferences",
	Short: "Inspect or update review skip preferences",
}

var preferencesGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print a user's review skip preferences",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cfg.DataDir)
		if err != nil {
			return err
		}
		defer st.Close()

		prefs, err := st.LoadPreferences(prefsUser)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				fmt.Println("no preferences stored; every review checkpoint pauses")
				defaults := planning.DefaultSkipPreferences()
				prefs = &defaults
			} else {
				return err
			}
		}

		data, err := yaml.Marshal(prefs)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	},
}

var preferencesSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store a user's review skip preferences from a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(prefsFile)
		if err != nil {
			return fmt.Errorf("failed to read preferences file: %w", err)
		}
		var prefs planning.SkipPreferences
		if err := yaml.Unmarshal(data, &prefs); err != nil {
			return fmt.Errorf("failed to parse preferences file: %w", err)
		}

		st, err := store.Open(cfg.DataDir)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.SavePreferences(prefsUser, prefs); err != nil {
			return err
		}
		fmt.Printf("preferences saved for %s\n", prefsUser)
		return nil
	},
}

func init() {
	preferencesCmd.PersistentFlags().StringVarP(&prefsUser, "user", "u", "", "user id (required)")
	preferencesCmd.MarkPersistentFlagRequired("user")

	preferencesSetCmd.Flags().StringVarP(&prefsFile, "file", "f", "", "path to the preferences YAML file (required)")
	preferencesSetCmd.MarkFlagRequired("file")

	preferencesCmd.AddCommand(preferencesGetCmd)
	preferencesCmd.AddCommand(preferencesSetCmd)
}
