package smartedit

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type CLIConfig struct {
	OptionsPath string
	ConfigPath  string
	LogFile     string
	Verbose     bool
	Completion  string
	Listen      string
	Provider    string
	Model       string
	Nvim        bool
	Folder      string
	DryRun      bool
	NoAnimation bool
	CommandText string
}

var cfg = &CLIConfig{}

var rootCmd = &cobra.Command{
	Use:   "smartedit",
	Short: "Turn natural-language commands into file changes.",
	Long: `smartedit asks an AI model to plan file changes for a command and applies
them inside a target folder, keeping a backup of everything it overwrites.

Example: smartedit run --folder ./site "add a contact page"`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Completion != "" {
			return handleCompletion(cmd)
		}
		return cmd.Help()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API used by the browser extension",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := loadOptions()
		if err != nil {
			return err
		}
		level := zapcore.InfoLevel
		if cfg.Verbose {
			level = zapcore.DebugLevel
		}
		logger, closeLog, err := NewLogger(level, opts.LogFile)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		defer closeLog()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		completer, err := opts.NewCompleter(ctx, logger)
		if err != nil {
			return err
		}
		store := OpenConfigStore(opts.ConfigPath, logger)
		if opts.WatchConfig {
			go func() {
				if err := store.Watch(ctx); err != nil {
					logger.Warn("Config watch stopped", zap.Error(err))
				}
			}()
		}

		metrics := NewMetrics()
		procOpts := []ProcessorOption{WithMetrics(metrics), WithIdempotencyTTL(opts.IdempotencyTTL)}
		if n := openNotifier(opts.Nvim, logger); n != nil {
			defer n.Close()
			procOpts = append(procOpts, WithEditorNotifier(n))
		}
		proc := NewProcessor(store, completer, logger, procOpts...)
		return NewServer(proc, opts.Provider, metrics, logger).Serve(ctx, opts.Listen)
	},
}

var runCmd = &cobra.Command{
	Use:   "run [command...]",
	Short: "Plan and apply a command once",
	Long:  "The command text comes from the arguments, else piped stdin, else the clipboard.",
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := NewSourceProvider().GetContent(args)
		if err != nil {
			return err
		}
		opts, err := loadOptions()
		if err != nil {
			return err
		}
		logger, closeLog, err := cliLogger(opts)
		if err != nil {
			return err
		}
		defer closeLog()

		ctx := cmd.Context()
		completer, err := opts.NewCompleter(ctx, logger)
		if err != nil {
			return err
		}
		proc := newCLIProcessor(opts, completer, logger)

		var res Result
		err = NewTUI(cmd.ErrOrStderr(), cfg.NoAnimation).Run("Asking the model...", func() error {
			var err error
			res, err = proc.Execute(ctx, Command{Text: text, TargetFolder: cfg.Folder, DryRun: cfg.DryRun})
			return err
		})
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), FormatSummary(res))
		return nil
	},
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply an AI response (JSON action plan) from stdin or the clipboard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := NewSourceProvider().GetContent(nil)
		if err != nil {
			return err
		}
		opts, err := loadOptions()
		if err != nil {
			return err
		}
		logger, closeLog, err := cliLogger(opts)
		if err != nil {
			return err
		}
		defer closeLog()

		proc := newCLIProcessor(opts, nil, logger)
		res, err := proc.Apply(cmd.Context(), Command{Text: cfg.CommandText, TargetFolder: cfg.Folder, DryRun: cfg.DryRun}, raw)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), FormatSummary(res))
		return nil
	},
}

var setFolderCmd = &cobra.Command{
	Use:   "set-folder <path>",
	Short: "Choose the folder commands operate on",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		proc, closeLog, err := offlineProcessor()
		if err != nil {
			return err
		}
		defer closeLog()
		path, err := proc.SetFolder(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Target folder: %s\n", path)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the most recent commands",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		proc, closeLog, err := offlineProcessor()
		if err != nil {
			return err
		}
		defer closeLog()
		fmt.Fprint(cmd.OutOrStdout(), FormatHistory(proc.History()))
		return nil
	},
}

var backupsCmd = &cobra.Command{
	Use:   "backups <filename>",
	Short: "List backups of a file in the target folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		proc, closeLog, err := offlineProcessor()
		if err != nil {
			return err
		}
		defer closeLog()
		list, err := proc.Backups(args[0])
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), FormatBackups(list))
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <filename> [backup]",
	Short: "Restore a file from a backup (newest by default)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		proc, closeLog, err := offlineProcessor()
		if err != nil {
			return err
		}
		defer closeLog()
		backup := ""
		if len(args) == 2 {
			backup = args[1]
		}
		restored, err := proc.Restore(cmd.Context(), args[0], backup)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Restored %s from %s\n", args[0], restored.Name)
		return nil
	},
}

func handleCompletion(cmd *cobra.Command) error {
	switch cfg.Completion {
	case "bash":
		return cmd.Root().GenBashCompletion(os.Stdout)
	case "zsh":
		return cmd.Root().GenZshCompletion(os.Stdout)
	case "fish":
		return cmd.Root().GenFishCompletion(os.Stdout, true)
	case "powershell":
		return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
	default:
		return fmt.Errorf("unsupported shell for completion: %s", cfg.Completion)
	}
}

// loadOptions applies command line flags over the options file and
// environment.
func loadOptions() (Options, error) {
	opts, err := LoadOptions(cfg.OptionsPath)
	if err != nil {
		return Options{}, err
	}
	if cfg.ConfigPath != "" {
		opts.ConfigPath = cfg.ConfigPath
	}
	if cfg.LogFile != "" {
		opts.LogFile = cfg.LogFile
	}
	if cfg.Listen != "" {
		opts.Listen = cfg.Listen
	}
	if cfg.Provider != "" {
		opts.Provider = cfg.Provider
	}
	if cfg.Model != "" {
		opts.Model = cfg.Model
	}
	if cfg.Nvim {
		opts.Nvim = true
	}
	return opts, opts.Validate()
}

// cliLogger keeps one-shot commands quiet unless --verbose is given.
func cliLogger(opts Options) (*zap.Logger, func(), error) {
	level := zapcore.WarnLevel
	if cfg.Verbose {
		level = zapcore.DebugLevel
	}
	return NewLogger(level, opts.LogFile)
}

func openNotifier(enabled bool, logger *zap.Logger) *NvimNotifier {
	if !enabled {
		return nil
	}
	n, err := NewNvimNotifier(NvimAddress(), logger)
	if err != nil {
		logger.Warn("Neovim refresh disabled", zap.Error(err))
		return nil
	}
	return n
}

func newCLIProcessor(opts Options, completer Completer, logger *zap.Logger) *Processor {
	store := OpenConfigStore(opts.ConfigPath, logger)
	var procOpts []ProcessorOption
	if n := openNotifier(opts.Nvim, logger); n != nil {
		procOpts = append(procOpts, WithEditorNotifier(n))
	}
	return NewProcessor(store, completer, logger, procOpts...)
}

// offlineProcessor serves commands that never reach the AI gateway.
func offlineProcessor() (*Processor, func(), error) {
	opts, err := loadOptions()
	if err != nil {
		return nil, nil, err
	}
	logger, closeLog, err := cliLogger(opts)
	if err != nil {
		return nil, nil, err
	}
	return newCLIProcessor(opts, nil, logger), closeLog, nil
}

func init() {
	rootCmd.Flags().StringVar(&cfg.Completion, "completion", "", "Generate completion script")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfg.OptionsPath, "options", "", "Options file (default ./"+OptionsFile+")")
	pf.StringVarP(&cfg.ConfigPath, "config", "c", "", "Config document path (default ./"+DefaultConfigFile+")")
	pf.StringVar(&cfg.LogFile, "log-file", "", "Also write logs to this file, rotated")
	pf.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Debug logging")
	pf.BoolVar(&cfg.Nvim, "nvim", false, "Reload changed buffers in the surrounding Neovim")

	serveCmd.Flags().StringVarP(&cfg.Listen, "listen", "l", "", "Listen address (default :3000, or $PORT)")
	for _, c := range []*cobra.Command{serveCmd, runCmd} {
		c.Flags().StringVarP(&cfg.Provider, "provider", "p", "", "AI provider: gemini or ollama")
		c.Flags().StringVarP(&cfg.Model, "model", "m", "", "Model name")
	}
	for _, c := range []*cobra.Command{runCmd, applyCmd} {
		c.Flags().StringVarP(&cfg.Folder, "folder", "f", "", "Target folder (remembered for later commands)")
		c.Flags().BoolVarP(&cfg.DryRun, "dry-run", "n", false, "Show the diff without writing")
	}
	runCmd.Flags().BoolVar(&cfg.NoAnimation, "no-animation", false, "Disable spinner")
	applyCmd.Flags().StringVar(&cfg.CommandText, "command", "apply pasted plan", "Command text recorded in history")

	rootCmd.AddCommand(serveCmd, runCmd, applyCmd, setFolderCmd, historyCmd, backupsCmd, restoreCmd)
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
}

func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}
