package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "pjetrust",
	Short: "pjetrust manages digital credentials and browser sessions for PJe access",
	Long: `pjetrust loads and validates a digital identity credential (a local
PKCS#12 bundle or a platform-store identity) and maintains a persisted,
time-bounded browser-authentication session for cloud-signed identities.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: pjetrust.yaml in the user config dir)")
}
