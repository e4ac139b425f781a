package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vnfood/foodctl/pkg/foodctl/config"
	"github.com/vnfood/foodctl/pkg/foodctl/output"
	"github.com/vnfood/foodctl/pkg/system"
)

type Config struct {
	ConfigPath   string
	OutputWriter io.Writer
	ErrorWriter  io.Writer
	Input        io.Reader
}

type runtimeState struct {
	configPath       string
	cfg              *config.Config
	outputFormat     string
	serverOverride   string
	backendOverride  string
	languageOverride string
	verbose          bool
	writer           io.Writer
	errWriter        io.Writer
	input            io.Reader
	log              *zap.SugaredLogger
}

type runtimeKey struct{}

func DefaultConfig() Config {
	return Config{
		ConfigPath:   config.DefaultConfigPath(),
		OutputWriter: os.Stdout,
		ErrorWriter:  os.Stderr,
		Input:        os.Stdin,
	}
}

func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{
		configPath: cfg.ConfigPath,
		writer:     cfg.OutputWriter,
		errWriter:  cfg.ErrorWriter,
		input:      cfg.Input,
	}

	root := &cobra.Command{
		Use:           "foodctl",
		Short:         "Vietnamese food recognition CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if rt.configPath == "" {
				rt.configPath = config.DefaultConfigPath()
			}
			if rt.outputFormat == "" {
				rt.outputFormat = os.Getenv("FOODCTL_OUTPUT")
			}
			if rt.serverOverride == "" {
				rt.serverOverride = os.Getenv("FOODCTL_SERVER")
			}
			if rt.backendOverride == "" {
				rt.backendOverride = os.Getenv("FOODCTL_CREDENTIALS_BACKEND")
			}
			if !rt.verbose {
				rt.verbose = strings.EqualFold(os.Getenv("FOODCTL_VERBOSE"), "true")
			}
			rt.log = system.NewCLILogger(rt.verbose).Sugar()

			if cmd.Name() == "init" && cmd.Parent() != nil && cmd.Parent().Name() == "config" {
				return nil
			}
			if cmd.Name() == "version" || cmd.Name() == "completion" {
				return nil
			}
			loaded, err := config.LoadOrDefault(rt.configPath)
			if err != nil {
				return err
			}
			if err := loaded.Validate(); err != nil {
				return err
			}
			rt.cfg = loaded
			return nil
		},
	}

	root.PersistentFlags().StringVar(&rt.configPath, "config", rt.configPath, "Path to config file")
	root.PersistentFlags().StringVarP(&rt.outputFormat, "output", "o", "", "Output format: table, json, yaml, template=<go template>")
	root.PersistentFlags().StringVar(&rt.serverOverride, "server", "", "API base URL override")
	root.PersistentFlags().StringVar(&rt.backendOverride, "credentials-backend", "", "Credential storage: file, keyring, redis or memory")
	root.PersistentFlags().StringVar(&rt.languageOverride, "lang", "", "Response language: VN or EN")
	root.PersistentFlags().BoolVarP(&rt.verbose, "verbose", "v", false, "Enable debug logging on stderr")

	root.SetContext(context.WithValue(context.Background(), runtimeKey{}, rt))

	root.AddCommand(
		NewAuthCommand(),
		NewPredictCommand(),
		NewHistoryCommand(),
		NewFoodCommand(),
		NewConfigCommand(),
		NewDevServerCommand(),
		NewCompletionCommand(),
		NewVersionCommand(),
	)
	return root
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

func (rt *runtimeState) Writer() io.Writer {
	if rt.writer != nil {
		return rt.writer
	}
	return os.Stdout
}

func (rt *runtimeState) ErrWriter() io.Writer {
	if rt.errWriter != nil {
		return rt.errWriter
	}
	return os.Stderr
}

func (rt *runtimeState) Input() io.Reader {
	if rt.input != nil {
		return rt.input
	}
	return os.Stdin
}

func (rt *runtimeState) Logger() *zap.SugaredLogger {
	if rt.log != nil {
		return rt.log
	}
	return zap.NewNop().Sugar()
}

func (rt *runtimeState) OutputSpec() (output.Spec, error) {
	format := rt.outputFormat
	if format == "" && rt.cfg != nil {
		format = rt.cfg.Settings.OutputFormat
	}
	return output.Parse(format)
}

func (rt *runtimeState) Server() string {
	if rt.serverOverride != "" {
		return rt.serverOverride
	}
	if rt.cfg != nil {
		return rt.cfg.ServerOrDefault()
	}
	return config.DefaultServer
}

func (rt *runtimeState) Language() string {
	if rt.languageOverride != "" {
		return rt.languageOverride
	}
	if rt.cfg != nil {
		return rt.cfg.Settings.LanguageOrDefault()
	}
	return config.DefaultLanguage
}

func (rt *runtimeState) configPathValue() string {
	if rt.configPath == "" {
		return config.DefaultConfigPath()
	}
	return rt.configPath
}

// write prints obj in the selected format, using table for the table format.
func (rt *runtimeState) write(obj any, table func(io.Writer)) error {
	spec, err := rt.OutputSpec()
	if err != nil {
		return err
	}
	if spec.Format == output.FormatTable {
		table(rt.Writer())
		return nil
	}
	return output.WriteObject(rt.Writer(), spec, obj)
}
