package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"zipup/internal/app"
	"zipup/internal/config"
	"zipup/internal/credential"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a ZipupApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Upload", "Login").
func newApp(cmd *cobra.Command, operation string) (*app.ZipupApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading config (run 'zipup config init'): %w", err)
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	a, err := app.NewZipupApp(cfg, app.Options{Operation: operation, Verbose: verbose})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

func promptPassphrase() (string, error) {
	return credential.PromptSecret(os.Stdin, os.Stderr, "Passphrase: ")
}

var rootCmd = &cobra.Command{
	Use:          "zipup",
	Short:        "Publish a ZIP archive as a new GitHub repository",
	SilenceUsage: true,
}

// upload command
var uploadCmd = &cobra.Command{
	Use:   "upload ARCHIVE",
	Short: "Create a repository from a ZIP archive (path, - for stdin, or s3://bucket/key)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		owner, _ := cmd.Flags().GetString("owner")
		token, _ := cmd.Flags().GetString("token")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		quiet, _ := cmd.Flags().GetBool("quiet")

		a, err := newApp(cmd, "Upload")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		params := app.UploadParams{
			Location:    args[0],
			Name:        name,
			Owner:       owner,
			Token:       token,
			Concurrency: concurrency,
			Passphrase:  promptPassphrase,
		}
		if cmd.Flags().Changed("private") {
			private, _ := cmd.Flags().GetBool("private")
			params.Private = &private
		}
		if !quiet {
			params.Sink = app.NewConsoleSink(os.Stdout)
		}

		res, err := a.Upload(ctx, params)
		if err != nil {
			if quiet {
				return err
			}
			fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
			return errors.New("upload failed")
		}

		if quiet {
			fmt.Println(res.URL)
			return nil
		}
		fmt.Printf("\nRepository: %s\n", res.URL)
		fmt.Printf("Branch:     %s\n", res.Branch)
		fmt.Printf("Commit:     %s\n", res.CommitSHA)
		fmt.Printf("Files:      %d\n", res.Files)
		return nil
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")

		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(owner, defaults.BaseDir)
		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Owner:    %s\n", owner)
		fmt.Printf("Base Dir: %s\n", defaults.BaseDir)
		if owner == "" {
			fmt.Println("No owner set; pass --owner to upload or edit the config file.")
		}
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults.ConfigPath)
		fmt.Printf("Owner:        %s\n", cfg.Owner)
		fmt.Printf("Base Dir:     %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:      %s\n", cfg.LogDir)
		fmt.Printf("Remote:       %s\n", cfg.Remote.Type)
		if cfg.Remote.BaseURL != "" {
			fmt.Printf("API URL:      %s\n", cfg.Remote.BaseURL)
		}
		if cfg.Remote.Organization != "" {
			fmt.Printf("Organization: %s\n", cfg.Remote.Organization)
		}
		fmt.Printf("Private:      %t\n", cfg.Remote.Private)
		fmt.Printf("Concurrency:  %d\n", cfg.Upload.BlobConcurrency)
		fmt.Printf("Token Store:  %s\n", cfg.Credential.Type)
		return nil
	},
}

// auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the access token",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Save an access token encrypted with a passphrase",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Login")
		if err != nil {
			return err
		}
		defer a.Close()

		token, err := credential.PromptSecret(os.Stdin, os.Stderr, "Access token: ")
		if err != nil {
			return fmt.Errorf("reading token: %w", err)
		}
		pass, err := promptPassphrase()
		if err != nil {
			return fmt.Errorf("reading passphrase: %w", err)
		}
		confirm, err := credential.PromptSecret(os.Stdin, os.Stderr, "Repeat passphrase: ")
		if err != nil {
			return fmt.Errorf("reading passphrase: %w", err)
		}
		if pass != confirm {
			return errors.New("passphrases do not match")
		}

		if err := a.Login(token, pass); err != nil {
			return err
		}
		fmt.Println("Token saved.")
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show where the access token comes from",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "AuthStatus")
		if err != nil {
			return err
		}
		defer a.Close()

		st := a.AuthStatus()
		switch {
		case st.EnvVar != "":
			fmt.Printf("Using token from $%s\n", st.EnvVar)
		case st.Stored:
			fmt.Println("Using saved token (passphrase required)")
		default:
			fmt.Println("No token configured. Run 'zipup auth login' or set ZIPUP_TOKEN.")
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history [OPERATION_ID]",
	Short: "View upload history, or one upload in detail",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd, "GetHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		if len(args) == 1 {
			r, err := a.FindUpload(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Operation:  %s\n", r.OperationID)
			fmt.Printf("Repository: %s/%s\n", r.Owner, r.Repository)
			fmt.Printf("Archive:    %s\n", r.Archive)
			fmt.Printf("Status:     %s\n", r.Status)
			fmt.Printf("Files:      %d\n", r.Files)
			fmt.Printf("Started:    %s\n", r.StartedAt.Local().Format(time.RFC3339))
			if r.FinishedAt != nil {
				fmt.Printf("Finished:   %s\n", r.FinishedAt.Local().Format(time.RFC3339))
			}
			if r.URL != "" {
				fmt.Printf("URL:        %s\n", r.URL)
			}
			if r.Error != "" {
				fmt.Printf("Error:      %s\n", r.Error)
			}
			return nil
		}

		recs, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(recs) == 0 {
			fmt.Println("No uploads recorded.")
			return nil
		}

		for _, r := range recs {
			duration := ""
			if r.FinishedAt != nil {
				duration = r.FinishedAt.Sub(r.StartedAt).Truncate(time.Millisecond).String()
			}
			detail := r.URL
			if r.Status != "success" {
				detail = r.Error
			}
			fmt.Printf("%-28s  %s  %-30s  %-8s  %4d  %-8s  %s\n",
				r.OperationID,
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.Owner+"/"+r.Repository,
				r.Status,
				r.Files,
				duration,
				detail,
			)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Mirror log output to stderr")

	// upload
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().StringP("name", "n", "", "Repository name (default: archive file name)")
	uploadCmd.Flags().String("owner", "", "Account that owns the token (default: config owner)")
	uploadCmd.Flags().String("token", "", "Access token (default: $ZIPUP_TOKEN, $GITHUB_TOKEN, then the saved token)")
	uploadCmd.Flags().Bool("private", false, "Create a private repository")
	uploadCmd.Flags().IntP("concurrency", "c", 0, "Parallel blob uploads (default: config value)")
	uploadCmd.Flags().BoolP("quiet", "q", false, "Print only the repository URL")

	// config subcommands
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().String("owner", "", "GitHub account that owns new repositories")
	configCmd.AddCommand(configListCmd)

	// auth subcommands
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authStatusCmd)

	// history
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "l", 50, "Maximum number of uploads to show")
}
