package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	loginMethod   string
	loginUsername string
	loginExtra    []string
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect and manage the persisted browser session",
}

var sessionStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the session's classification and metadata",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		info := a.sessions.Describe()
		switch {
		case info.Valid:
			fmt.Println("session is valid and active")
		case info.Exists:
			fmt.Println("session has expired; authenticate again")
		default:
			fmt.Println("no session found; authenticate first")
		}
		printKV("name", info.SessionName)
		printKV("directory", info.Path)
		printKV("max age", info.MaxAge)
		if info.Exists {
			printKV("auth method", info.AuthMethod)
			if info.Username != "" {
				printKV("username", info.Username)
			}
			printKV("created", info.CreatedAt.Format("2006-01-02 15:04:05"))
			printKV("last used", info.LastUsedAt.Format("2006-01-02 15:04:05"))
			printKV("age", info.AgeHuman)
		}
		return nil
	},
}

var sessionLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Record a completed external browser login",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		extra := make(map[string]string, len(loginExtra))
		for _, kv := range loginExtra {
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				return fmt.Errorf("--extra entries must be key=value, got %q", kv)
			}
			extra[k] = v
		}

		info, err := a.coord.CompleteLogin(loginMethod, loginUsername, extra)
		if err != nil {
			return err
		}
		fmt.Printf("session %q created (auth method %s, max age %s)\n",
			info.SessionName, info.AuthMethod, info.MaxAge)
		return nil
	},
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all persisted session artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.coord.ClearSession(); err != nil {
			return err
		}
		fmt.Printf("session %q cleared\n", a.sessions.Name())
		return nil
	},
}

func init() {
	sessionLoginCmd.Flags().StringVar(&loginMethod, "method", "safe_id", "authentication method used for the login")
	sessionLoginCmd.Flags().StringVar(&loginUsername, "username", "", "authenticated username")
	sessionLoginCmd.Flags().StringArrayVar(&loginExtra, "extra", nil, "extra metadata fields (key=value, repeatable)")
	sessionCmd.AddCommand(sessionStatusCmd, sessionLoginCmd, sessionClearCmd)
	rootCmd.AddCommand(sessionCmd)
}
