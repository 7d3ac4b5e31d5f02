package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arueira/pjetrust/credential"
)

var certCmd = &cobra.Command{
	Use:   "cert",
	Short: "Inspect and validate the configured credential",
}

var certInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the loaded credential's identity and trust window",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		info, err := a.coord.CredentialInfo(cmd.Context())
		if err != nil {
			return err
		}
		printKV("subject", info.Subject)
		printKV("issuer", info.Issuer)
		printKV("serial", info.SerialNumber)
		printKV("kind", info.Kind)
		printKV("valid from", info.ValidFrom.Format("2006-01-02 15:04:05 MST"))
		printKV("valid until", info.ValidUntil.Format("2006-01-02 15:04:05 MST"))
		printKV("days to expiry", info.DaysUntilExpiry)
		printKV("fingerprint", info.Fingerprint)
		printKV("source", info.Source)
		return nil
	},
}

var certCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Re-validate the credential's trust window",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		valid, msg, err := a.coord.CheckTrustWindow(cmd.Context(), a.cfg.Credential.WarnDays)
		if err != nil {
			return err
		}
		fmt.Println(msg)
		if !valid {
			return fmt.Errorf("credential is not usable")
		}
		return nil
	},
}

var certValidateCmd = &cobra.Command{
	Use:   "validate <bundle.pfx>",
	Short: "Validate a bundle file without retaining it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		ok, msg, info := credential.ValidateBundleFile(args[0], []byte(a.cfg.Credential.BundlePassword), a.cfg.Credential.WarnDays)
		fmt.Println(msg)
		if info != nil {
			printKV("subject", info.Subject)
			printKV("valid until", info.ValidUntil.Format("2006-01-02"))
		}
		if !ok {
			return fmt.Errorf("bundle is not usable")
		}
		return nil
	},
}

func init() {
	certCmd.PersistentFlags().Int("warn-days", 30, "flag expiry within this many days")
	certCmd.AddCommand(certInfoCmd, certCheckCmd, certValidateCmd)
	rootCmd.AddCommand(certCmd)
}
